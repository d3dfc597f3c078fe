package core

import (
	"fmt"
	"time"
)

// Tier awards Points when a counted signal reaches Min.
type Tier struct {
	Min    int64
	Points int
}

// AgeTier awards Points when the oldest version is at least MinDays old.
type AgeTier struct {
	MinDays int
	Points  int
}

// EcosystemConfig carries the per-ecosystem scoring policy consumed by the
// shared helpers and the staged scorer.
type EcosystemConfig struct {
	Ecosystem string

	AgeTiers       []AgeTier
	VersionTiers   []Tier
	DownloadTiers  []Tier
	DependentTiers []Tier
	StarTiers      []Tier
	OrgBonus       int
	StarsMax       int
}

// OldestVersion returns the earliest publish timestamp, or the zero time
// when no version carries one.
func OldestVersion(versions []Version) time.Time {
	var oldest time.Time
	for _, v := range versions {
		if v.PublishedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || v.PublishedAt.Before(oldest) {
			oldest = v.PublishedAt
		}
	}
	return oldest
}

// ScoreAge converts package age into points per the config's age tiers.
// Zero points when no version has a timestamp.
func (c *EcosystemConfig) ScoreAge(versions []Version, now time.Time) (int, string) {
	oldest := OldestVersion(versions)
	if oldest.IsZero() {
		return 0, "no version timestamps"
	}

	days := int(now.Sub(oldest).Hours() / 24)
	for _, t := range c.AgeTiers {
		if days >= t.MinDays {
			return t.Points, fmt.Sprintf("oldest release %d days ago", days)
		}
	}
	return 0, fmt.Sprintf("oldest release %d days ago", days)
}

// ScoreVersionCount converts the number of releases into points.
func (c *EcosystemConfig) ScoreVersionCount(n int) (int, string) {
	return scoreTiers(c.VersionTiers, int64(n)), fmt.Sprintf("%d versions published", n)
}

// ScoreDownloads converts a download count into points.
func (c *EcosystemConfig) ScoreDownloads(downloads int64) (int, string) {
	return scoreTiers(c.DownloadTiers, downloads), fmt.Sprintf("%d downloads", downloads)
}

// ScoreDependents converts a reverse-dependency count into points.
func (c *EcosystemConfig) ScoreDependents(count int64) (int, string) {
	return scoreTiers(c.DependentTiers, count), fmt.Sprintf("%d dependent packages", count)
}

// ScoreRepo converts source-host facts (stars, organization ownership)
// into points, capped at StarsMax.
func (c *EcosystemConfig) ScoreRepo(stars int64, orgOwned bool) (int, string) {
	points := scoreTiers(c.StarTiers, stars)
	reason := fmt.Sprintf("%d stars", stars)
	if orgOwned {
		points += c.OrgBonus
		reason += ", organization owned"
	}
	if points > c.StarsMax {
		points = c.StarsMax
	}
	return points, reason
}

func scoreTiers(tiers []Tier, value int64) int {
	for _, t := range tiers {
		if value >= t.Min {
			return t.Points
		}
	}
	return 0
}
