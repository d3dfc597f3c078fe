// Package cli implements the slopguard command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "slopguard",
		Short:         "Detect hallucinated and malicious package dependencies",
		Long:          "slopguard scans an SBOM and flags dependencies that look hallucinated,\ntyposquatted, or otherwise untrustworthy, using public registry metadata.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScanCmd())
	return root.Execute()
}
