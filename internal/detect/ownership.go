package detect

import (
	"fmt"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
)

type ownerRecord struct {
	Author string `json:"author"`
}

// OwnershipChange compares the current maintainer identity against the
// last one this machine observed and flags a change, scaling severity by
// the package's reach. It is the one detector that writes shared state:
// the cache entry it compares against.
func OwnershipChange(store *cache.Cache, ecosystem, name, author string, downloads int64) *core.Anomaly {
	if author == "" {
		return nil
	}
	key := fmt.Sprintf("owner:%s:%s", ecosystem, name)

	var prev ownerRecord
	seen := store.Get(key, cache.TTLOwnership, &prev)
	_ = store.Set(key, ownerRecord{Author: author}, cache.TTLOwnership)

	if !seen || prev.Author == "" || prev.Author == author {
		return nil
	}

	severity := core.SeverityMedium
	penalty := 10
	switch {
	case downloads >= 100_000_000:
		severity = core.SeverityCritical
		penalty = 40
	case downloads >= 10_000_000:
		severity = core.SeverityHigh
		penalty = 20
	}

	return &core.Anomaly{
		Type:        "ownership_change",
		Severity:    severity,
		Description: fmt.Sprintf("maintainer changed from %q to %q", prev.Author, author),
		Penalty:     penalty,
	}
}
