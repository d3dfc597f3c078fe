package detect

import (
	"fmt"
	"time"

	"github.com/git-pkgs/slopguard/internal/core"
)

const (
	inflationWatermark = 50_000_000
	newPackageDays     = 90
)

// DownloadInflation flags download counts inconsistent with package age.
// Counts above the watermark are organic at any age and skip the check.
func DownloadInflation(downloads int64, versions []core.Version, now time.Time) *core.Anomaly {
	if downloads == PopularityUnknown || downloads >= inflationWatermark {
		return nil
	}

	oldest := core.OldestVersion(versions)
	if oldest.IsZero() {
		return nil
	}
	ageDays := now.Sub(oldest).Hours() / 24
	if ageDays < 7 {
		return nil
	}

	ratio := float64(downloads) / (ageDays * 1000)
	switch {
	case ratio > 100 && ageDays < 30:
		return &core.Anomaly{
			Type:        "download_inflation",
			Severity:    core.SeverityHigh,
			Description: fmt.Sprintf("%d downloads in %.0f days suggests inflated counts", downloads, ageDays),
		}
	case ratio > 50 && ageDays < 14:
		return &core.Anomaly{
			Type:        "download_inflation",
			Severity:    core.SeverityMedium,
			Description: fmt.Sprintf("%d downloads in %.0f days is unusually fast growth", downloads, ageDays),
		}
	}
	return nil
}

// VersionSpike flags burst publishing: 5+ versions inside 24 hours, or
// 10+ inside a week.
func VersionSpike(versions []core.Version, now time.Time) *core.Anomaly {
	day := countSince(versions, now.Add(-24*time.Hour))
	week := countSince(versions, now.Add(-7*24*time.Hour))

	switch {
	case day >= 5:
		return &core.Anomaly{
			Type:        "version_spike",
			Severity:    core.SeverityHigh,
			Description: fmt.Sprintf("%d versions published in the last 24 hours", day),
		}
	case week >= 10:
		return &core.Anomaly{
			Type:        "version_spike",
			Severity:    core.SeverityMedium,
			Description: fmt.Sprintf("%d versions published in the last 7 days", week),
		}
	}
	return nil
}

// NewPackage flags packages whose first release is under 90 days old.
func NewPackage(versions []core.Version, now time.Time) *core.Anomaly {
	oldest := core.OldestVersion(versions)
	if oldest.IsZero() {
		return nil
	}
	ageDays := int(now.Sub(oldest).Hours() / 24)
	if ageDays >= newPackageDays {
		return nil
	}
	return &core.Anomaly{
		Type:        "new_package",
		Severity:    core.SeverityLow,
		Description: fmt.Sprintf("first release was %d days ago", ageDays),
	}
}

// RapidVersioning flags sustained churn: more than 20 versions inside
// the last 30 days.
func RapidVersioning(versions []core.Version, now time.Time) *core.Anomaly {
	month := countSince(versions, now.Add(-30*24*time.Hour))
	if month <= 20 {
		return nil
	}
	return &core.Anomaly{
		Type:        "rapid_versioning",
		Severity:    core.SeverityMedium,
		Description: fmt.Sprintf("%d versions published in the last 30 days", month),
	}
}

func countSince(versions []core.Version, cutoff time.Time) int {
	n := 0
	for _, v := range versions {
		if !v.PublishedAt.IsZero() && v.PublishedAt.After(cutoff) {
			n++
		}
	}
	return n
}
