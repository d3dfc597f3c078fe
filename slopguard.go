// Package slopguard analyzes SBOM package dependencies for supply-chain
// trust: hallucinated names, typosquats, homoglyph confusables,
// namespace squats, ownership takeovers, and burst publishing — using
// only public registry metadata.
//
// Basic usage:
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"github.com/git-pkgs/slopguard"
//		_ "github.com/git-pkgs/slopguard/all"
//	)
//
//	refs, err := slopguard.ParseSBOMFile("sbom.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	summary, err := slopguard.Scan(context.Background(), refs, slopguard.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, v := range summary.Results {
//		fmt.Println(v.Package.Name, v.Action)
//	}
//
// Ecosystem adapters register through blank imports; use the all
// subpackage to enable every supported ecosystem.
package slopguard

import (
	"context"
	"time"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
	"github.com/git-pkgs/slopguard/internal/sbom"
	"github.com/git-pkgs/slopguard/internal/scan"
)

// Re-export types from internal/core
type (
	// PackageRef identifies one declared dependency.
	PackageRef = core.PackageRef

	// TrustResult is the outcome of scoring one package.
	TrustResult = core.TrustResult

	// BreakdownEntry records one scoring signal's contribution.
	BreakdownEntry = core.BreakdownEntry

	// Anomaly is a suspicious-pattern finding.
	Anomaly = core.Anomaly

	// Verdict is the terminal per-package output of a scan.
	Verdict = core.Verdict

	// Summary aggregates a completed scan.
	Summary = core.Summary

	// Action is the terminal disposition for a package.
	Action = core.Action

	// TrustLevel classifies a trust score.
	TrustLevel = core.TrustLevel

	// Severity ranks an anomaly finding.
	Severity = core.Severity
)

// Re-export constants
const (
	ActionVerified = core.ActionVerified
	ActionWarn     = core.ActionWarn
	ActionBlock    = core.ActionBlock
	ActionNotFound = core.ActionNotFound

	LevelCritical  = core.LevelCritical
	LevelHigh      = core.LevelHigh
	LevelMedium    = core.LevelMedium
	LevelLow       = core.LevelLow
	LevelUntrusted = core.LevelUntrusted
	LevelNotFound  = core.LevelNotFound

	SeverityCritical = core.SeverityCritical
	SeverityHigh     = core.SeverityHigh
	SeverityMedium   = core.SeverityMedium
	SeverityLow      = core.SeverityLow
)

// Options configures a scan.
type Options struct {
	// Workers bounds concurrent package evaluations. Default 5.
	Workers int

	// GitHubToken raises the anonymous source-host rate limit.
	GitHubToken string

	// CacheDir overrides the default per-user cache directory.
	CacheDir string

	// Debug receives verbose progress lines when set.
	Debug func(format string, args ...any)

	// Profile receives per-stage timings when set.
	Profile func(name string, stage int, elapsed time.Duration)
}

// Scan evaluates refs and returns the aggregated summary.
func Scan(ctx context.Context, refs []PackageRef, opts Options) (*Summary, error) {
	store, err := cache.New(opts.CacheDir)
	if err != nil {
		return nil, err
	}

	httpClient := client.New(
		client.WithAuthFunc(github.AuthFunc(opts.GitHubToken)),
		client.WithDebugLog(opts.Debug),
	)
	svc := &core.Services{HTTP: httpClient, Cache: store}

	orch := scan.New(svc, github.New(svc), scan.Options{
		Workers: opts.Workers,
		Debug:   opts.Debug,
		Profile: opts.Profile,
	})
	return orch.Scan(ctx, refs), nil
}

// ParseSBOM extracts package references from SBOM bytes
// (CycloneDX or SPDX JSON).
func ParseSBOM(data []byte) ([]PackageRef, error) {
	return sbom.Parse(data)
}

// ParseSBOMFile extracts package references from an SBOM file.
func ParseSBOMFile(path string) ([]PackageRef, error) {
	return sbom.ParseFile(path)
}

// SupportedEcosystems returns all registered ecosystem tags.
// Note: ecosystems must be imported to be registered.
func SupportedEcosystems() []string {
	return core.Supported()
}
