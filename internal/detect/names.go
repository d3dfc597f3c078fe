// Package detect implements the anomaly detectors. Each detector is a
// pure function over registry data returning at most one finding;
// ownership tracking is the single stateful exception and says so.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/git-pkgs/slopguard/internal/core"
)

// PopularPackage is one entry of an ecosystem's top-downloads list.
type PopularPackage struct {
	Name      string `json:"name"`
	Downloads int64  `json:"downloads"`
}

// PopularityUnknown marks ecosystems with no download counts; adoption
// ratio checks are skipped and name matches flag unconditionally.
const PopularityUnknown int64 = -1

// Typosquat flags names one edit away from a popular package when the
// subject has negligible adoption next to the target. An exact match is
// the target itself and never flags.
func Typosquat(name string, downloads int64, popular []PopularPackage) *core.Anomaly {
	for _, p := range popular {
		if p.Name == name {
			return nil
		}
	}

	for _, p := range popular {
		if levenshtein.ComputeDistance(name, p.Name) != 1 {
			continue
		}
		if downloads != PopularityUnknown && p.Downloads > 0 {
			// A real plugin or fork earns a visible share of the target's
			// adoption; 0.1% is the cutoff.
			if float64(downloads) >= float64(p.Downloads)*0.001 {
				continue
			}
		}
		return &core.Anomaly{
			Type:          "typosquat",
			Severity:      core.SeverityHigh,
			Description:   fmt.Sprintf("%q is one edit away from popular package %q", name, p.Name),
			TargetPackage: p.Name,
		}
	}
	return nil
}

// confusablePairs maps visually similar sequences to their canonical
// form. Deliberately small and Latin-centric.
var confusablePairs = [][2]string{
	{"0", "O"},
	{"1", "l"},
	{"1", "I"},
	{"rn", "m"},
	{"vv", "w"},
}

// Homoglyph flags names that turn into a popular package name when a
// confusable character sequence is replaced with its canonical form.
func Homoglyph(name string, popular []PopularPackage) *core.Anomaly {
	known := make(map[string]bool, len(popular))
	for _, p := range popular {
		known[p.Name] = true
	}
	if known[name] {
		return nil
	}

	for _, pair := range confusablePairs {
		if !strings.Contains(name, pair[0]) {
			continue
		}
		candidate := strings.ReplaceAll(name, pair[0], pair[1])
		if candidate != name && known[candidate] {
			return &core.Anomaly{
				Type:          "homoglyph",
				Severity:      core.SeverityHigh,
				Description:   fmt.Sprintf("%q impersonates %q using lookalike characters", name, candidate),
				TargetPackage: candidate,
			}
		}
	}
	return nil
}

const namespaceBaseFloor = 10_000_000

// NamespaceSquat flags packages squatting a popular package's namespace:
// the first name token matches a heavily-downloaded base package while
// the subject itself has almost no adoption.
func NamespaceSquat(name string, downloads int64, popular []PopularPackage, magnets []string) *core.Anomaly {
	prefix := splitPrefix(name)
	if prefix == "" || prefix == name {
		return nil
	}

	if downloads == PopularityUnknown {
		for _, m := range magnets {
			if prefix == m {
				return &core.Anomaly{
					Type:          "namespace_squat",
					Severity:      core.SeverityHigh,
					Description:   fmt.Sprintf("%q squats the %q namespace", name, m),
					TargetPackage: m,
				}
			}
		}
		return nil
	}

	for _, p := range popular {
		if p.Name != prefix || p.Downloads < namespaceBaseFloor {
			continue
		}
		if float64(downloads) >= float64(p.Downloads)*0.01 {
			continue
		}

		severity := core.SeverityMedium
		if downloads < 1000 {
			severity = core.SeverityHigh
		}
		return &core.Anomaly{
			Type:          "namespace_squat",
			Severity:      severity,
			Description:   fmt.Sprintf("%q squats the %q namespace with %d downloads", name, p.Name, downloads),
			TargetPackage: p.Name,
		}
	}
	return nil
}

func splitPrefix(name string) string {
	for i, r := range name {
		if r == '-' || r == '_' {
			return name[:i]
		}
	}
	return name
}

var trailingDigits = regexp.MustCompile(`\d{2,}$`)

// hasTripleRepeat reports whether any rune appears three or more times
// in a row.
func hasTripleRepeat(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// GoNamePattern flags module repository names shaped like common Go
// typosquats: "-go" suffixes, "golang-" prefixes, stuttered letters,
// and trailing numeric suffixes.
func GoNamePattern(repoName string) *core.Anomaly {
	var reason string
	switch {
	case strings.HasSuffix(repoName, "-go"):
		reason = `repository name ends in "-go"`
	case strings.HasPrefix(repoName, "golang-"):
		reason = `repository name starts with "golang-"`
	case hasTripleRepeat(repoName):
		reason = "repository name repeats a letter three or more times"
	case trailingDigits.MatchString(repoName):
		reason = "repository name ends in a numeric suffix"
	default:
		return nil
	}
	return &core.Anomaly{
		Type:        "suspicious_name_pattern",
		Severity:    core.SeverityMedium,
		Description: fmt.Sprintf("%s: %s", repoName, reason),
	}
}
