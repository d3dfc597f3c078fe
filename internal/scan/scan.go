// Package scan evaluates every package in an SBOM concurrently and
// composes per-package verdicts into a summary.
package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
	"github.com/git-pkgs/slopguard/internal/trust"
)

const (
	defaultWorkers = 5

	// verifiedThreshold and warnThreshold gate the action decision on the
	// post-penalty score.
	verifiedThreshold = 60
	warnThreshold     = 40

	// anomalyGate: detectors only run for packages scoring below this.
	anomalyGate = 60
)

// Options tunes a scan.
type Options struct {
	Workers int
	Debug   func(format string, args ...any)
	Profile func(name string, stage int, elapsed time.Duration)
}

// Orchestrator drives parallel package evaluation.
type Orchestrator struct {
	svc    *core.Services
	scorer *trust.Scorer
	opts   Options

	// fatal is set once when the source host exhausts its quota;
	// workers check it before dispatching new packages.
	fatal atomic.Bool
}

// New creates an orchestrator over shared services.
func New(svc *core.Services, gh *github.Client, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	scorer := trust.NewScorer(gh)
	scorer.Profile = opts.Profile
	return &Orchestrator{svc: svc, scorer: scorer, opts: opts}
}

// Scan evaluates refs and returns the aggregated summary. Unsupported
// ecosystems are filtered before dispatch. A fatal source-host rate
// limit stops new dispatches, drains in-flight workers, and marks the
// summary partial.
func (o *Orchestrator) Scan(ctx context.Context, refs []core.PackageRef) *core.Summary {
	adapters := make(map[string]core.Adapter)
	var supported []core.PackageRef
	for _, ref := range refs {
		eco := core.Normalize(ref.Ecosystem)
		if eco == "" {
			eco = ref.Ecosystem
		}
		if _, ok := adapters[eco]; !ok {
			adapter, err := core.New(eco, o.svc)
			if err != nil {
				o.debugf("skipping %s: %v", ref.Name, err)
				continue
			}
			adapters[eco] = adapter
		}
		ref.Ecosystem = eco
		supported = append(supported, ref)
	}

	var (
		mu       sync.Mutex
		verdicts []core.Verdict
		wg       sync.WaitGroup
		sem      = make(chan struct{}, o.opts.Workers)
	)

	for _, ref := range supported {
		wg.Add(1)
		go func(ref core.PackageRef) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if o.fatal.Load() {
				return
			}

			verdict := o.evaluate(ctx, adapters[ref.Ecosystem], ref)
			if verdict == nil {
				return
			}

			mu.Lock()
			verdicts = append(verdicts, *verdict)
			mu.Unlock()
		}(ref)
	}
	wg.Wait()

	return o.aggregate(supported, verdicts)
}

// evaluate scores one package, runs gated anomaly detection, applies
// penalties, and derives the action. A nil return means the package was
// not processed (fatal rate limit).
func (o *Orchestrator) evaluate(ctx context.Context, adapter core.Adapter, ref core.PackageRef) (verdict *core.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = o.errorVerdict(ref, fmt.Errorf("panic: %v", r))
		}
	}()

	result, meta, versions, err := o.scorer.Score(ctx, adapter, ref.Name)
	if err != nil {
		if client.IsFatal(err) {
			o.debugf("fatal rate limit while scoring %s: %v", ref.Name, err)
			o.fatal.Store(true)
			return nil
		}
		return o.errorVerdict(ref, err)
	}

	var anomalies []core.Anomaly
	if result.Level != core.LevelNotFound && result.Score < anomalyGate {
		anomalies = adapter.DetectAnomalies(ctx, ref.Name, meta, versions)
		for _, a := range anomalies {
			result.Score -= a.AppliedPenalty()
		}
		result.Clamp()
		result.Level = core.LevelForScore(result.Score)
	}

	return &core.Verdict{
		Package:   ref,
		Trust:     *result,
		Anomalies: anomalies,
		Action:    deriveAction(result, anomalies),
	}
}

func (o *Orchestrator) errorVerdict(ref core.PackageRef, err error) *core.Verdict {
	o.debugf("error evaluating %s: %v", ref.Name, err)
	return &core.Verdict{
		Package: ref,
		Trust:   core.TrustResult{Score: 0, Level: core.LevelUntrusted, Stage: 1},
		Action:  core.ActionWarn,
		Error:   err.Error(),
	}
}

// deriveAction maps the post-penalty score and anomaly severities to a
// terminal disposition.
func deriveAction(result *core.TrustResult, anomalies []core.Anomaly) core.Action {
	if result.Level == core.LevelNotFound {
		return core.ActionNotFound
	}
	if result.Score >= verifiedThreshold {
		return core.ActionVerified
	}
	for _, a := range anomalies {
		if a.Severity == core.SeverityHigh || a.Severity == core.SeverityCritical {
			return core.ActionBlock
		}
	}
	if result.Score < warnThreshold {
		return core.ActionWarn
	}
	// Some ecosystems structurally score in the 40s and 50s without any
	// anomaly; that is not actionable.
	return core.ActionVerified
}

func (o *Orchestrator) aggregate(refs []core.PackageRef, verdicts []core.Verdict) *core.Summary {
	sort.Slice(verdicts, func(i, j int) bool {
		if verdicts[i].Action != verdicts[j].Action {
			return verdicts[i].Action.Rank() < verdicts[j].Action.Rank()
		}
		return verdicts[i].Package.Name < verdicts[j].Package.Name
	})

	summary := &core.Summary{
		Total:   len(refs),
		Results: verdicts,
	}
	for _, v := range verdicts {
		switch v.Action {
		case core.ActionVerified:
			summary.Verified++
		case core.ActionWarn:
			summary.Suspicious++
		case core.ActionBlock:
			summary.HighRisk++
		case core.ActionNotFound:
			summary.NotFound++
		}
	}

	if o.fatal.Load() {
		summary.Partial = true
		summary.Processed = len(verdicts)
	}
	return summary
}

func (o *Orchestrator) debugf(format string, args ...any) {
	if o.opts.Debug != nil {
		o.opts.Debug(format, args...)
	}
}
