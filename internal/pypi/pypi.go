// Package pypi provides the trust adapter for pypi.org.
//
// PyPI publishes no download counts or reverse-dependency API, so age
// and release history carry more scoring weight than in other
// ecosystems, topped up by packaging-hygiene signals (development
// status classifiers, license, python-3 support).
package pypi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/detect"
	"github.com/git-pkgs/slopguard/internal/github"
)

const (
	DefaultURL        = "https://pypi.org"
	DefaultPopularURL = "https://hugovk.github.io/top-pypi-packages/top-pypi-packages-30-days.min.json"
	ecosystem         = "pypi"
)

func init() {
	core.Register(ecosystem, func(svc *core.Services) core.Adapter {
		return New(DefaultURL, svc)
	})
}

var config = &core.EcosystemConfig{
	Ecosystem: ecosystem,
	AgeTiers: []core.AgeTier{
		{MinDays: 730, Points: 25},
		{MinDays: 365, Points: 15},
		{MinDays: 180, Points: 8},
	},
	VersionTiers: []core.Tier{
		{Min: 21, Points: 20},
		{Min: 11, Points: 12},
		{Min: 6, Points: 6},
	},
	StarTiers: []core.Tier{
		{Min: 10_000, Points: 10},
		{Min: 1_000, Points: 7},
		{Min: 100, Points: 4},
	},
	OrgBonus: 5,
	StarsMax: 15,
}

// magnetNamespaces are framework brands attackers prefix-squat on.
var magnetNamespaces = []string{
	"django", "flask", "numpy", "pandas", "pytest", "requests",
	"tensorflow", "torch", "scikit", "fastapi", "airflow",
}

type Adapter struct {
	baseURL    string
	popularURL string
	svc        *core.Services
}

func New(baseURL string, svc *core.Services) *Adapter {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Adapter{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		popularURL: DefaultPopularURL,
		svc:        svc,
	}
}

func (a *Adapter) Ecosystem() string {
	return ecosystem
}

func (a *Adapter) Config() *core.EcosystemConfig {
	return config
}

// NormalizeName canonicalizes a PyPI project name: lowercase, with
// underscore and hyphen treated as the same separator.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

type projectResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name           string            `json:"name"`
	Author         string            `json:"author"`
	Maintainer     string            `json:"maintainer"`
	License        string            `json:"license"`
	Classifiers    []string          `json:"classifiers"`
	ProjectURLs    map[string]string `json:"project_urls"`
	HomePage       string            `json:"home_page"`
	RequiresPython string            `json:"requires_python"`
}

type releaseFile struct {
	UploadTime string `json:"upload_time_iso_8601"`
	Yanked     bool   `json:"yanked"`
}

func (a *Adapter) FetchMetadata(ctx context.Context, name string) (*core.Metadata, []core.Version, error) {
	name = NormalizeName(name)

	var record struct {
		Meta     core.Metadata  `json:"meta"`
		Versions []core.Version `json:"versions"`
	}
	err := a.svc.Cache.Fetch(fmt.Sprintf("meta:%s:%s", ecosystem, name), cache.TTLShort, &record, func() (any, error) {
		url := fmt.Sprintf("%s/pypi/%s/json", a.baseURL, name)

		var resp projectResponse
		if err := a.svc.HTTP.GetJSON(ctx, url, &resp); err != nil {
			if core.AbsentFromRegistry(err) {
				return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
			}
			return nil, err
		}

		author := resp.Info.Author
		if author == "" {
			author = resp.Info.Maintainer
		}

		meta := core.Metadata{
			Name:       NormalizeName(resp.Info.Name),
			Repository: repoURL(resp.Info),
			Attrs: map[string]any{
				"author":          author,
				"licenses":        resp.Info.License,
				"classifiers":     resp.Info.Classifiers,
				"requires_python": resp.Info.RequiresPython,
			},
		}

		versions := make([]core.Version, 0, len(resp.Releases))
		for number, files := range resp.Releases {
			v := core.Version{Number: number}
			for _, f := range files {
				if f.Yanked {
					v.Yanked = true
				}
				if f.UploadTime == "" {
					continue
				}
				if ts, err := time.Parse(time.RFC3339, f.UploadTime); err == nil {
					if v.PublishedAt.IsZero() || ts.Before(v.PublishedAt) {
						v.PublishedAt = ts
					}
				}
			}
			versions = append(versions, v)
		}

		return struct {
			Meta     core.Metadata  `json:"meta"`
			Versions []core.Version `json:"versions"`
		}{meta, versions}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &record.Meta, record.Versions, nil
}

func repoURL(info infoBlock) string {
	priorityKeys := []string{"Repository", "Source", "Source Code", "Code", "Homepage"}
	for _, key := range priorityKeys {
		if url, ok := info.ProjectURLs[key]; ok && isRepoURL(url) {
			return url
		}
	}
	for _, url := range info.ProjectURLs {
		if isRepoURL(url) && !strings.Contains(url, "github.com/sponsors") {
			return url
		}
	}
	if isRepoURL(info.HomePage) {
		return info.HomePage
	}
	return ""
}

func isRepoURL(url string) bool {
	return strings.Contains(url, "github.com") || strings.Contains(url, "gitlab.com") || strings.Contains(url, "bitbucket.org")
}

func (a *Adapter) CalculateTrust(name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	result := &core.TrustResult{}

	points, reason := config.ScoreAge(versions, time.Now())
	result.AddSignal("age", points, reason)

	points, reason = config.ScoreVersionCount(len(versions))
	result.AddSignal("versions", points, reason)

	if points, status := maturityBonus(classifiers(meta)); points > 0 {
		result.AddSignal("maturity", points, "development status: "+status)
	}

	if meta.Licenses() != "" {
		result.AddSignal("license", 5, "license declared: "+meta.Licenses())
	}

	if supportsPython3(meta) {
		result.AddSignal("python3", 5, "declares Python 3 support")
	}

	return result
}

func classifiers(meta *core.Metadata) []string {
	raw, _ := meta.Attrs["classifiers"].([]any)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if typed, ok := meta.Attrs["classifiers"].([]string); ok {
			return typed
		}
	}
	return out
}

func maturityBonus(classifiers []string) (int, string) {
	for _, c := range classifiers {
		switch {
		case strings.Contains(c, "Development Status :: 5"), strings.Contains(c, "Development Status :: 6"):
			return 10, "production/stable"
		case strings.Contains(c, "Development Status :: 4"):
			return 5, "beta"
		case strings.Contains(c, "Development Status :: 3"):
			return 2, "alpha"
		case strings.Contains(c, "Development Status :: 7"):
			return 0, "inactive"
		}
	}
	return 0, ""
}

func supportsPython3(meta *core.Metadata) bool {
	if req, _ := meta.Attrs["requires_python"].(string); req != "" {
		return true
	}
	for _, c := range classifiers(meta) {
		if strings.HasPrefix(c, "Programming Language :: Python :: 3") {
			return true
		}
	}
	return false
}

// FetchDependentsCount always reports unavailable: PyPI has no
// reverse-dependency API.
func (a *Adapter) FetchDependentsCount(ctx context.Context, name string) (int64, bool) {
	return 0, false
}

func (a *Adapter) ExtractSourceRepo(ctx context.Context, meta *core.Metadata) (string, string, bool) {
	return github.ParseRepoURL(meta.Repository)
}

func (a *Adapter) DetectAnomalies(ctx context.Context, name string, meta *core.Metadata, versions []core.Version) []core.Anomaly {
	now := time.Now()
	name = NormalizeName(name)
	popular := a.popularList(ctx)

	var out []core.Anomaly
	add := func(anomaly *core.Anomaly) {
		if anomaly != nil {
			out = append(out, *anomaly)
		}
	}

	add(detect.Typosquat(name, detect.PopularityUnknown, popular))
	add(detect.Homoglyph(name, popular))
	add(detect.NamespaceSquat(name, detect.PopularityUnknown, popular, magnetNamespaces))
	add(detect.VersionSpike(versions, now))
	add(detect.NewPackage(versions, now))
	add(detect.RapidVersioning(versions, now))
	add(detect.OwnershipChange(a.svc.Cache, ecosystem, name, meta.Author(), detect.PopularityUnknown))
	return out
}

type popularResponse struct {
	Rows []struct {
		Project       string `json:"project"`
		DownloadCount int64  `json:"download_count"`
	} `json:"rows"`
}

const popularListSize = 500

// popularList fetches the ranked download list once per run, long-TTL
// cached, falling back to an embedded list when the feed is unreachable.
func (a *Adapter) popularList(ctx context.Context) []detect.PopularPackage {
	var list []detect.PopularPackage
	err := a.svc.Cache.Fetch(fmt.Sprintf("popular:%s", ecosystem), cache.TTLLong, &list, func() (any, error) {
		var resp popularResponse
		if err := a.svc.HTTP.GetJSON(ctx, a.popularURL, &resp); err != nil {
			return nil, err
		}

		out := make([]detect.PopularPackage, 0, popularListSize)
		for _, row := range resp.Rows {
			out = append(out, detect.PopularPackage{
				Name:      NormalizeName(row.Project),
				Downloads: row.DownloadCount,
			})
			if len(out) == popularListSize {
				break
			}
		}
		return out, nil
	})
	if err != nil || len(list) == 0 {
		return topProjects
	}
	return list
}
