package cli

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/slopguard"
	_ "github.com/git-pkgs/slopguard/all"
	"github.com/git-pkgs/slopguard/internal/config"
	"github.com/git-pkgs/slopguard/internal/report"
)

// exit codes: 0 clean, 1 findings at or above --fail-on, 2 usage error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func newScanCmd() *cobra.Command {
	var (
		format     string
		workers    int
		failOn     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "scan <sbom.json>",
		Short: "Scan an SBOM for untrustworthy dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)
			if workers > 0 {
				cfg.Workers = workers
			}

			refs, err := slopguard.ParseSBOMFile(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			opts := slopguard.Options{
				Workers:     cfg.Workers,
				GitHubToken: cfg.GitHubToken,
				CacheDir:    cfg.CacheDir,
				Debug:       cfg.Debugf(),
			}
			if cfg.Profile {
				opts.Profile = func(name string, stage int, elapsed time.Duration) {
					log.Printf("profile: %s stage %d took %s", name, stage, elapsed)
				}
			}

			summary, err := slopguard.Scan(cmd.Context(), refs, opts)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				if err := report.WriteJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			case "text":
				if err := report.WriteText(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			default:
				return &exitError{code: 2, err: fmt.Errorf("unknown format %q", format)}
			}

			if shouldFail(summary, failOn) {
				return &exitError{code: 1, err: fmt.Errorf("scan found actionable packages")}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent package evaluations")
	cmd.Flags().StringVar(&failOn, "fail-on", "block", "exit nonzero on findings at this level: warn or block")
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (default .slopguard.yml)")
	return cmd
}

func shouldFail(summary *slopguard.Summary, failOn string) bool {
	switch failOn {
	case "warn":
		return summary.HighRisk > 0 || summary.Suspicious > 0 || summary.NotFound > 0
	default:
		return summary.HighRisk > 0 || summary.NotFound > 0
	}
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exitError); ok {
		if exitErr.code != 1 {
			fmt.Fprintln(os.Stderr, exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 2
}
