package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
)

// scriptedAdapter routes behavior by package name so one registered
// ecosystem can exercise every orchestrator path.
type scriptedAdapter struct {
	svc *core.Services
}

func init() {
	core.Register("scripted", func(svc *core.Services) core.Adapter {
		return &scriptedAdapter{svc: svc}
	})
}

func (a *scriptedAdapter) Ecosystem() string { return "scripted" }

func (a *scriptedAdapter) Config() *core.EcosystemConfig {
	return &core.EcosystemConfig{Ecosystem: "scripted"}
}

func (a *scriptedAdapter) FetchMetadata(ctx context.Context, name string) (*core.Metadata, []core.Version, error) {
	switch name {
	case "ghost":
		return nil, nil, &core.NotFoundError{Ecosystem: "scripted", Name: name}
	case "broken":
		return nil, nil, errors.New("registry exploded")
	case "fatal":
		return nil, nil, fmt.Errorf("probe: %w", client.ErrQuotaExhausted)
	}
	return &core.Metadata{Name: name, Attrs: map[string]any{}}, []core.Version{{Number: "1.0.0"}}, nil
}

func (a *scriptedAdapter) CalculateTrust(name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	result := &core.TrustResult{}
	switch name {
	case "good":
		result.AddSignal("basic", 90, "scripted")
	case "borderline":
		result.AddSignal("basic", 50, "scripted")
	case "weak":
		result.AddSignal("basic", 30, "scripted")
	case "squat", "shaky":
		result.AddSignal("basic", 45, "scripted")
	default:
		result.AddSignal("basic", 10, "scripted")
	}
	return result
}

func (a *scriptedAdapter) FetchDependentsCount(ctx context.Context, name string) (int64, bool) {
	return 0, false
}

func (a *scriptedAdapter) ExtractSourceRepo(ctx context.Context, meta *core.Metadata) (string, string, bool) {
	return "", "", false
}

func (a *scriptedAdapter) DetectAnomalies(ctx context.Context, name string, meta *core.Metadata, versions []core.Version) []core.Anomaly {
	switch name {
	case "squat":
		return []core.Anomaly{{
			Type:          "typosquat",
			Severity:      core.SeverityHigh,
			Description:   "one edit from a popular package",
			TargetPackage: "popular",
		}}
	case "shaky":
		return []core.Anomaly{{
			Type:        "new_package",
			Severity:    core.SeverityLow,
			Description: "first release 10 days ago",
		}}
	}
	return nil
}

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store, err := cache.New(t.TempDir())
	require.NoError(t, err)
	svc := &core.Services{
		HTTP:  client.New(client.WithBaseDelay(time.Millisecond), client.WithRateLimit(1000, 10000)),
		Cache: store,
	}
	return New(svc, github.New(svc), Options{Workers: 4})
}

func refs(names ...string) []core.PackageRef {
	out := make([]core.PackageRef, len(names))
	for i, n := range names {
		out[i] = core.PackageRef{Ecosystem: "scripted", Name: n, Version: "1.0.0"}
	}
	return out
}

func verdictFor(summary *core.Summary, name string) *core.Verdict {
	for i := range summary.Results {
		if summary.Results[i].Package.Name == name {
			return &summary.Results[i]
		}
	}
	return nil
}

func TestScanVerified(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("good"))

	require.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Verified)

	v := verdictFor(summary, "good")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionVerified, v.Action)
	assert.Equal(t, 90, v.Trust.Score)
	assert.Empty(t, v.Anomalies)
}

func TestScanNotFound(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("ghost"))

	assert.Equal(t, 1, summary.NotFound)
	v := verdictFor(summary, "ghost")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionNotFound, v.Action)
	assert.Equal(t, 0, v.Trust.Score)
	assert.Equal(t, 0, v.Trust.Stage)
	assert.Equal(t, core.LevelNotFound, v.Trust.Level)
}

func TestScanBlocksHighAnomaly(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("squat"))

	assert.Equal(t, 1, summary.HighRisk)
	v := verdictFor(summary, "squat")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionBlock, v.Action)
	// 45 base - 20 HIGH penalty, applied exactly once.
	assert.Equal(t, 25, v.Trust.Score)
	require.Len(t, v.Anomalies, 1)
	assert.Equal(t, "typosquat", v.Anomalies[0].Type)
	assert.Equal(t, "popular", v.Anomalies[0].TargetPackage)
}

func TestScanLowAnomalyStaysVerified(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("shaky"))

	v := verdictFor(summary, "shaky")
	require.NotNil(t, v)
	// 45 - 5 LOW = 40: no HIGH anomaly, within the tolerated band.
	assert.Equal(t, 40, v.Trust.Score)
	assert.Equal(t, core.ActionVerified, v.Action)
}

func TestScanWeakScoreWarns(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("weak"))

	v := verdictFor(summary, "weak")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionWarn, v.Action)
	assert.Equal(t, 1, summary.Suspicious)
}

func TestScanBorderlineStructuralScore(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("borderline"))

	v := verdictFor(summary, "borderline")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionVerified, v.Action)
}

func TestScanErrorBecomesWarnVerdict(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("broken", "good"))

	v := verdictFor(summary, "broken")
	require.NotNil(t, v)
	assert.Equal(t, core.ActionWarn, v.Action)
	assert.Contains(t, v.Error, "registry exploded")

	// The failure does not poison the rest of the scan.
	assert.Equal(t, 1, summary.Verified)
}

func TestScanSkipsUnsupportedEcosystem(t *testing.T) {
	input := append(refs("good"), core.PackageRef{Ecosystem: "nuget", Name: "x", Version: "1"})
	summary := newOrchestrator(t).Scan(context.Background(), input)

	assert.Equal(t, 1, summary.Total)
	assert.Nil(t, verdictFor(summary, "x"))
}

func TestScanSortsByActionThenName(t *testing.T) {
	summary := newOrchestrator(t).Scan(context.Background(), refs("good", "ghost", "squat", "weak", "another-good"))

	var order []core.Action
	for _, v := range summary.Results {
		order = append(order, v.Action)
	}
	require.Equal(t, []core.Action{
		core.ActionBlock, core.ActionNotFound, core.ActionWarn, core.ActionWarn, core.ActionVerified,
	}, order)

	// WARN group sorted lexicographically.
	assert.Equal(t, "another-good", summary.Results[2].Package.Name)
	assert.Equal(t, "weak", summary.Results[3].Package.Name)
}

func TestScanFatalRateLimitMarksPartial(t *testing.T) {
	names := []string{"fatal"}
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("good-%02d", i))
	}
	orch := newOrchestrator(t)
	orch.opts.Workers = 1

	summary := orch.Scan(context.Background(), refs(names...))

	assert.True(t, summary.Partial)
	assert.Less(t, summary.Processed, summary.Total)
	assert.Equal(t, len(summary.Results), summary.Processed)
	assert.Nil(t, verdictFor(summary, "fatal"))
}
