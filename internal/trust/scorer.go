// Package trust drives the three-stage lazy scoring protocol. Most
// packages clear stage 1 on registry data alone; only the long tail
// pays for dependents and source-host lookups.
package trust

import (
	"context"
	"time"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
)

// confidenceThreshold ends scoring early once crossed.
const confidenceThreshold = 70

// Scorer evaluates packages through an adapter.
type Scorer struct {
	GitHub *github.Client

	// Profile, when set, receives per-stage wall time.
	Profile func(name string, stage int, elapsed time.Duration)
}

// NewScorer creates a scorer using gh for stage-3 source-host facts.
func NewScorer(gh *github.Client) *Scorer {
	return &Scorer{GitHub: gh}
}

// Score runs the staged protocol for one package and returns the trust
// result together with the fetched metadata and versions, which the
// caller reuses for anomaly detection. A nil error with a NOT_FOUND
// level means the package does not exist; a non-nil error is either a
// fatal rate limit or an unexpected failure.
func (s *Scorer) Score(ctx context.Context, adapter core.Adapter, name string) (*core.TrustResult, *core.Metadata, []core.Version, error) {
	meta, versions, err := s.fetchMetadata(ctx, adapter, name)
	if err != nil {
		if core.IsNotFound(err) {
			return &core.TrustResult{Score: 0, Level: core.LevelNotFound, Stage: 0}, nil, nil, nil
		}
		return nil, nil, nil, err
	}

	// Stage 1: basic signals from already-fetched data.
	result := s.stage1(adapter, name, meta, versions)
	if result.Score >= confidenceThreshold {
		return finalize(result, 1), meta, versions, nil
	}

	// Stage 2: reverse-dependency count, when the registry has one.
	s.stage2(ctx, adapter, name, result)
	if result.Score >= confidenceThreshold {
		return finalize(result, 2), meta, versions, nil
	}

	// Stage 3: source-host reputation.
	if err := s.stage3(ctx, adapter, name, meta, result); err != nil {
		return nil, nil, nil, err
	}
	return finalize(result, 3), meta, versions, nil
}

func (s *Scorer) fetchMetadata(ctx context.Context, adapter core.Adapter, name string) (*core.Metadata, []core.Version, error) {
	defer s.profile(name, 0, time.Now())
	return adapter.FetchMetadata(ctx, name)
}

func (s *Scorer) stage1(adapter core.Adapter, name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	defer s.profile(name, 1, time.Now())
	return adapter.CalculateTrust(name, meta, versions)
}

func (s *Scorer) stage2(ctx context.Context, adapter core.Adapter, name string, result *core.TrustResult) {
	defer s.profile(name, 2, time.Now())

	count, ok := adapter.FetchDependentsCount(ctx, name)
	if !ok {
		return
	}
	points, reason := adapter.Config().ScoreDependents(count)
	result.AddSignal("dependents", points, reason)
}

func (s *Scorer) stage3(ctx context.Context, adapter core.Adapter, name string, meta *core.Metadata, result *core.TrustResult) error {
	defer s.profile(name, 3, time.Now())

	owner, repo, ok := adapter.ExtractSourceRepo(ctx, meta)
	if !ok {
		return nil
	}

	facts, err := s.GitHub.RepoFacts(ctx, owner, repo)
	if err != nil {
		if client.IsFatal(err) {
			return err
		}
		// Missing repo facts just leave the score where it is.
		return nil
	}

	points, reason := adapter.Config().ScoreRepo(facts.Stars, facts.OrgOwned())
	result.AddSignal("source_repo", points, reason)
	return nil
}

func finalize(result *core.TrustResult, stage int) *core.TrustResult {
	result.Stage = stage
	result.Clamp()
	result.Level = core.LevelForScore(result.Score)
	return result
}

func (s *Scorer) profile(name string, stage int, start time.Time) {
	if s.Profile != nil {
		s.Profile(name, stage, time.Since(start))
	}
}
