// Package report renders scan summaries for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/git-pkgs/slopguard/internal/core"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	blockStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	notFoundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	verifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary *core.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// WriteText writes the human-readable report.
func WriteText(w io.Writer, summary *core.Summary) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SlopGuard scan"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %d packages: %s verified, %s suspicious, %s high risk, %s not found\n\n",
		summary.Total,
		verifiedStyle.Render(fmt.Sprintf("%d", summary.Verified)),
		warnStyle.Render(fmt.Sprintf("%d", summary.Suspicious)),
		blockStyle.Render(fmt.Sprintf("%d", summary.HighRisk)),
		notFoundStyle.Render(fmt.Sprintf("%d", summary.NotFound)),
	))

	for _, v := range summary.Results {
		if v.Action == core.ActionVerified && len(v.Anomalies) == 0 && v.Error == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %s/%s@%s  %s\n",
			actionBadge(v.Action), v.Package.Ecosystem, v.Package.Name, v.Package.Version,
			dimStyle.Render(fmt.Sprintf("score %d (%s, stage %d)", v.Trust.Score, v.Trust.Level, v.Trust.Stage))))

		for _, a := range v.Anomalies {
			line := fmt.Sprintf("      %s %s: %s", a.Severity, a.Type, a.Description)
			if a.TargetPackage != "" {
				line += fmt.Sprintf(" (target: %s)", a.TargetPackage)
			}
			b.WriteString(line + "\n")
		}
		if v.Error != "" {
			b.WriteString(dimStyle.Render("      error: "+v.Error) + "\n")
		}
	}

	if summary.Partial {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"  partial scan: source-host rate limit exhausted after %d of %d packages", summary.Processed, summary.Total)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  set GITHUB_TOKEN to raise the hourly quota and rerun"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func actionBadge(action core.Action) string {
	switch action {
	case core.ActionBlock:
		return blockStyle.Render("BLOCK    ")
	case core.ActionWarn:
		return warnStyle.Render("WARN     ")
	case core.ActionNotFound:
		return notFoundStyle.Render("NOT_FOUND")
	default:
		return verifiedStyle.Render("VERIFIED ")
	}
}
