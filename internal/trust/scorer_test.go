package trust

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
)

type fakeAdapter struct {
	notFound     bool
	stage1Points int
	dependents   int64
	dependentsOK bool
	repoOK       bool

	dependentsCalls int
	repoCalls       int
}

func (f *fakeAdapter) Ecosystem() string { return "fake" }

func (f *fakeAdapter) Config() *core.EcosystemConfig {
	return &core.EcosystemConfig{
		Ecosystem:      "fake",
		DependentTiers: []core.Tier{{Min: 1001, Points: 10}, {Min: 101, Points: 6}},
		StarTiers:      []core.Tier{{Min: 10_000, Points: 10}, {Min: 1_000, Points: 7}},
		OrgBonus:       5,
		StarsMax:       15,
	}
}

func (f *fakeAdapter) FetchMetadata(ctx context.Context, name string) (*core.Metadata, []core.Version, error) {
	if f.notFound {
		return nil, nil, &core.NotFoundError{Ecosystem: "fake", Name: name}
	}
	return &core.Metadata{Name: name, Attrs: map[string]any{}}, []core.Version{{Number: "1.0.0"}}, nil
}

func (f *fakeAdapter) CalculateTrust(name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	result := &core.TrustResult{}
	result.AddSignal("basic", f.stage1Points, "test signal")
	return result
}

func (f *fakeAdapter) FetchDependentsCount(ctx context.Context, name string) (int64, bool) {
	f.dependentsCalls++
	return f.dependents, f.dependentsOK
}

func (f *fakeAdapter) ExtractSourceRepo(ctx context.Context, meta *core.Metadata) (string, string, bool) {
	f.repoCalls++
	return "acme", "widget", f.repoOK
}

func (f *fakeAdapter) DetectAnomalies(ctx context.Context, name string, meta *core.Metadata, versions []core.Version) []core.Anomaly {
	return nil
}

func testServices(t *testing.T, handler http.Handler) (*core.Services, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := cache.New(t.TempDir())
	require.NoError(t, err)

	httpClient := client.New(client.WithBaseDelay(time.Millisecond), client.WithRateLimit(1000, 10000))
	return &core.Services{HTTP: httpClient, Cache: store}, server
}

func githubStub(stars int, ownerType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stargazers_count": ` + strconv.Itoa(stars) + `, "owner": {"login": "acme", "type": "` + ownerType + `"}}`))
	})
}

func newScorer(t *testing.T, handler http.Handler) (*Scorer, *core.Services) {
	svc, server := testServices(t, handler)
	gh := github.NewWithBaseURL(svc, server.URL)
	return NewScorer(gh), svc
}

func TestNotFound(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(0, "User"))
	adapter := &fakeAdapter{notFound: true}

	result, meta, versions, err := scorer.Score(context.Background(), adapter, "ghost")
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Nil(t, versions)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, core.LevelNotFound, result.Level)
	assert.Equal(t, 0, result.Stage)
}

func TestStageOneEarlyExit(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(50_000, "Organization"))
	adapter := &fakeAdapter{stage1Points: 85, dependentsOK: true, repoOK: true}

	result, meta, _, err := scorer.Score(context.Background(), adapter, "solid")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 1, result.Stage)
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, core.LevelHigh, result.Level)
	assert.Zero(t, adapter.dependentsCalls, "stage 2 must not run after early exit")
	assert.Zero(t, adapter.repoCalls, "stage 3 must not run after early exit")
}

func TestStageTwoEarlyExit(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(50_000, "Organization"))
	adapter := &fakeAdapter{stage1Points: 65, dependents: 5000, dependentsOK: true, repoOK: true}

	result, _, _, err := scorer.Score(context.Background(), adapter, "steady")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stage)
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, 1, adapter.dependentsCalls)
	assert.Zero(t, adapter.repoCalls)
}

func TestStageThreeCompletes(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(50_000, "Organization"))
	adapter := &fakeAdapter{stage1Points: 30, dependents: 50, dependentsOK: false, repoOK: true}

	result, _, _, err := scorer.Score(context.Background(), adapter, "obscure")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stage)
	// 30 basic + 15 capped repo points.
	assert.Equal(t, 45, result.Score)
	assert.Equal(t, core.LevelLow, result.Level)
	assert.Equal(t, 1, adapter.repoCalls)
}

func TestStageThreeWithoutRepo(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(0, "User"))
	adapter := &fakeAdapter{stage1Points: 20, repoOK: false}

	result, _, _, err := scorer.Score(context.Background(), adapter, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stage)
	assert.Equal(t, 20, result.Score)
	assert.Equal(t, core.LevelUntrusted, result.Level)
}

func TestStageThreeFatalQuota(t *testing.T) {
	scorer, _ := newScorer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(403)
	}))
	adapter := &fakeAdapter{stage1Points: 20, repoOK: true}

	_, _, _, err := scorer.Score(context.Background(), adapter, "anything")
	require.Error(t, err)
	assert.True(t, client.IsFatal(err))
}

func TestScoreClampAndBreakdownUnique(t *testing.T) {
	scorer, _ := newScorer(t, githubStub(50_000, "Organization"))
	adapter := &fakeAdapter{stage1Points: 120}

	result, _, _, err := scorer.Score(context.Background(), adapter, "inflated")
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, core.LevelCritical, result.Level)

	seen := map[string]bool{}
	for _, e := range result.Breakdown {
		assert.False(t, seen[e.Signal], "duplicate signal %s", e.Signal)
		seen[e.Signal] = true
	}
}
