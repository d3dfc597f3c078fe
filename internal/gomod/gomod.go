// Package gomod provides the trust adapter for Go module paths.
//
// There is no central index: modules are addressed by host path. The
// module proxy answers existence and version questions, deps.dev
// supplies project facts (scorecard, license, advisories), and vanity
// domains resolve through their go-import meta tag.
package gomod

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/detect"
)

const (
	DefaultProxyURL = "https://proxy.golang.org"
	ecosystem       = "golang"

	stdlibScore = 95
)

func init() {
	core.Register(ecosystem, func(svc *core.Services) core.Adapter {
		return New(DefaultProxyURL, svc)
	})
}

var config = &core.EcosystemConfig{
	Ecosystem: ecosystem,
	AgeTiers: []core.AgeTier{
		{MinDays: 730, Points: 10},
		{MinDays: 365, Points: 6},
		{MinDays: 180, Points: 3},
	},
	VersionTiers: []core.Tier{
		{Min: 21, Points: 5},
		{Min: 11, Points: 3},
		{Min: 6, Points: 1},
	},
	StarTiers: []core.Tier{
		{Min: 10_000, Points: 15},
		{Min: 1_000, Points: 10},
		{Min: 100, Points: 5},
	},
	OrgBonus: 5,
	StarsMax: 20,
}

// magnetNamespaces are Go project brands attackers prefix-squat on.
var magnetNamespaces = []string{
	"kubernetes", "docker", "golang", "aws", "gin", "gorm", "grpc", "cobra",
}

type Adapter struct {
	proxyURL string
	deps     *depsDevClient
	vanity   *vanityResolver
	svc      *core.Services
}

func New(proxyURL string, svc *core.Services) *Adapter {
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	return &Adapter{
		proxyURL: strings.TrimSuffix(proxyURL, "/"),
		deps:     newDepsDevClient(svc),
		vanity:   newVanityResolver(svc),
		svc:      svc,
	}
}

func (a *Adapter) Ecosystem() string {
	return ecosystem
}

func (a *Adapter) Config() *core.EcosystemConfig {
	return config
}

// IsStdlib reports whether the module path belongs to the standard
// library or its extended golang.org/x namespace.
func IsStdlib(name string) bool {
	if strings.HasPrefix(name, "golang.org/x/") {
		return true
	}
	first := name
	if idx := strings.Index(name, "/"); idx > 0 {
		first = name[:idx]
	}
	return !strings.Contains(first, ".")
}

// encodeForProxy encodes a module path per the goproxy protocol:
// capital letters become "!" followed by the lowercase letter.
func encodeForProxy(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune('!')
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type versionInfo struct {
	Version string    `json:"Version"`
	Time    time.Time `json:"Time"`
}

func (a *Adapter) FetchMetadata(ctx context.Context, name string) (*core.Metadata, []core.Version, error) {
	if IsStdlib(name) {
		return &core.Metadata{Name: name, Stdlib: true, Attrs: map[string]any{}}, nil, nil
	}

	versions, err := a.fetchVersions(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if len(versions) == 0 {
		return nil, nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
	}

	owner, repo, _ := a.resolveRepo(ctx, name)

	meta := &core.Metadata{
		Name:  name,
		Attrs: map[string]any{},
	}
	if owner != "" {
		meta.Repository = fmt.Sprintf("https://github.com/%s/%s", owner, repo)
		meta.Attrs["author"] = owner
	}

	if facts := a.deps.projectFacts(ctx, owner, repo); facts != nil {
		meta.Attrs["scorecard"] = facts.Scorecard
		meta.Attrs["licenses"] = facts.License
		meta.Attrs["stars"] = facts.Stars
		meta.Attrs["repo_described"] = facts.Described
	}

	latest := versions[len(versions)-1].Number
	meta.Attrs["advisories"] = a.deps.advisoryCount(ctx, name, latest)
	meta.Attrs["dependency_count"] = a.dependencyCount(ctx, name, latest)

	return meta, versions, nil
}

func (a *Adapter) fetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	var versions []core.Version
	err := a.svc.Cache.Fetch(fmt.Sprintf("versions:%s:%s", ecosystem, name), cache.TTLLong, &versions, func() (any, error) {
		encoded := encodeForProxy(name)
		listURL := fmt.Sprintf("%s/%s/@v/list", a.proxyURL, encoded)

		body, err := a.svc.HTTP.GetText(ctx, listURL)
		if err != nil {
			if core.AbsentFromRegistry(err) {
				return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
			}
			return nil, err
		}

		lines := strings.Split(strings.TrimSpace(body), "\n")
		out := make([]core.Version, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			infoURL := fmt.Sprintf("%s/%s/@v/%s.info", a.proxyURL, encoded, line)
			var info versionInfo
			if err := a.svc.HTTP.GetJSON(ctx, infoURL, &info); err == nil {
				out = append(out, core.Version{Number: info.Version, PublishedAt: info.Time})
			} else {
				out = append(out, core.Version{Number: line})
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// dependencyCount parses the module's go.mod from the proxy and counts
// direct requirements.
func (a *Adapter) dependencyCount(ctx context.Context, name, version string) int {
	var count int
	key := fmt.Sprintf("deps:%s:%s@%s", ecosystem, name, version)
	err := a.svc.Cache.Fetch(key, cache.TTLLong, &count, func() (any, error) {
		encoded := encodeForProxy(name)
		modURL := fmt.Sprintf("%s/%s/@v/%s.mod", a.proxyURL, encoded, version)

		body, err := a.svc.HTTP.GetText(ctx, modURL)
		if err != nil {
			return nil, err
		}
		return countGoModRequires(body), nil
	})
	if err != nil {
		return -1
	}
	return count
}

// countGoModRequires counts direct (non-indirect) require entries.
func countGoModRequires(content string) int {
	count := 0
	inRequire := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "require (") {
			inRequire = true
			continue
		}
		if inRequire && line == ")" {
			inRequire = false
			continue
		}
		if !inRequire && !strings.HasPrefix(line, "require ") {
			continue
		}

		entry := strings.TrimPrefix(line, "require ")
		if strings.Contains(entry, "// indirect") {
			continue
		}
		if idx := strings.Index(entry, "//"); idx != -1 {
			entry = entry[:idx]
		}
		if len(strings.Fields(entry)) >= 2 {
			count++
		}
	}
	return count
}

func (a *Adapter) CalculateTrust(name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	result := &core.TrustResult{}

	if meta.Stdlib {
		result.AddSignal("standard_library", stdlibScore, "reserved standard-library namespace")
		return result
	}

	points, reason := config.ScoreAge(versions, time.Now())
	result.AddSignal("age", points, reason)

	points, reason = config.ScoreVersionCount(len(versions))
	result.AddSignal("versions", points, reason)

	if sc, ok := scorecard(meta); ok {
		result.AddSignal("scorecard", scorecardPoints(sc), fmt.Sprintf("OpenSSF scorecard %.1f", sc))
	}

	if meta.Licenses() != "" {
		result.AddSignal("license", 5, "license declared: "+meta.Licenses())
	}

	if deps, ok := dependencyCountAttr(meta); ok {
		result.AddSignal("dependencies", dependencyPoints(deps), fmt.Sprintf("%d direct dependencies", deps))
	}

	if described, _ := meta.Attrs["repo_described"].(bool); described {
		result.AddSignal("repo_quality", 5, "project indexed with security posture data")
	}

	if advisories := int(attrInt(meta, "advisories")); advisories > 0 {
		penalty := advisories * 10
		if penalty > 30 {
			penalty = 30
		}
		result.AddSignal("advisories", -penalty, fmt.Sprintf("%d known advisories", advisories))
	}

	return result
}

func scorecard(meta *core.Metadata) (float64, bool) {
	switch v := meta.Attrs["scorecard"].(type) {
	case float64:
		return v, v > 0
	case int:
		return float64(v), v > 0
	}
	return 0, false
}

func scorecardPoints(overall float64) int {
	switch {
	case overall >= 8:
		return 20
	case overall >= 6:
		return 15
	case overall >= 4:
		return 8
	case overall > 0:
		return 3
	}
	return 0
}

func dependencyCountAttr(meta *core.Metadata) (int, bool) {
	n := int(attrInt(meta, "dependency_count"))
	if _, present := meta.Attrs["dependency_count"]; !present || n < 0 {
		return 0, false
	}
	return n, true
}

// dependencyPoints rewards small dependency trees: less surface to
// compromise.
func dependencyPoints(n int) int {
	switch {
	case n <= 2:
		return 5
	case n <= 5:
		return 3
	case n <= 15:
		return 1
	}
	return 0
}

func attrInt(meta *core.Metadata, key string) int64 {
	switch v := meta.Attrs[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// FetchDependentsCount reports the dependent count deps.dev knows for
// the latest version.
func (a *Adapter) FetchDependentsCount(ctx context.Context, name string) (int64, bool) {
	if IsStdlib(name) {
		return 0, false
	}
	versions, err := a.fetchVersions(ctx, name)
	if err != nil || len(versions) == 0 {
		return 0, false
	}
	return a.deps.dependentCount(ctx, name, versions[len(versions)-1].Number)
}

func (a *Adapter) ExtractSourceRepo(ctx context.Context, meta *core.Metadata) (string, string, bool) {
	return a.resolveRepo(ctx, meta.Name)
}

// resolveRepo maps a module path to a GitHub owner/repo: direct
// github.com paths split literally, anything else goes through the
// vanity-domain meta-tag lookup.
func (a *Adapter) resolveRepo(ctx context.Context, name string) (string, string, bool) {
	if strings.HasPrefix(name, "github.com/") {
		parts := strings.Split(name, "/")
		if len(parts) >= 3 {
			return parts[1], parts[2], true
		}
		return "", "", false
	}
	return a.vanity.resolve(ctx, name)
}

func (a *Adapter) DetectAnomalies(ctx context.Context, name string, meta *core.Metadata, versions []core.Version) []core.Anomaly {
	now := time.Now()

	var out []core.Anomaly
	add := func(anomaly *core.Anomaly) {
		if anomaly != nil {
			out = append(out, *anomaly)
		}
	}

	add(detect.Typosquat(name, detect.PopularityUnknown, topModules))
	add(detect.Homoglyph(name, topModules))
	add(detect.NamespaceSquat(baseName(name), detect.PopularityUnknown, nil, magnetNamespaces))
	add(detect.GoNamePattern(baseName(name)))
	add(detect.VersionSpike(versions, now))
	add(detect.NewPackage(versions, now))
	add(detect.RapidVersioning(versions, now))
	add(detect.OwnershipChange(a.svc.Cache, ecosystem, name, meta.Author(), detect.PopularityUnknown))
	return out
}

func baseName(modulePath string) string {
	idx := strings.LastIndex(modulePath, "/")
	if idx < 0 {
		return modulePath
	}
	return modulePath[idx+1:]
}
