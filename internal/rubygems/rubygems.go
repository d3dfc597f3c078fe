// Package rubygems provides the trust adapter for rubygems.org.
package rubygems

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
	DefaultURL = "https://rubygems.org"
	ecosystem  = "gem"
)

func init() {
	core.Register(ecosystem, func(svc *core.Services) core.Adapter {
		return New(DefaultURL, svc)
	})
}

var config = &core.EcosystemConfig{
	Ecosystem: ecosystem,
	AgeTiers: []core.AgeTier{
		{MinDays: 730, Points: 15},
		{MinDays: 365, Points: 10},
		{MinDays: 180, Points: 5},
	},
	VersionTiers: []core.Tier{
		{Min: 21, Points: 10},
		{Min: 11, Points: 6},
		{Min: 6, Points: 3},
	},
	DownloadTiers: []core.Tier{
		{Min: 100_000_000, Points: 30},
		{Min: 10_000_000, Points: 22},
		{Min: 1_000_000, Points: 15},
		{Min: 100_000, Points: 8},
	},
	DependentTiers: []core.Tier{
		{Min: 1001, Points: 10},
		{Min: 101, Points: 6},
		{Min: 11, Points: 3},
	},
	StarTiers: []core.Tier{
		{Min: 10_000, Points: 10},
		{Min: 1_000, Points: 7},
		{Min: 100, Points: 4},
	},
	OrgBonus: 5,
	StarsMax: 15,
}

type Adapter struct {
	baseURL string
	svc     *core.Services
}

func New(baseURL string, svc *core.Services) *Adapter {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Adapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		svc:     svc,
	}
}

func (a *Adapter) Ecosystem() string {
	return ecosystem
}

func (a *Adapter) Config() *core.EcosystemConfig {
	return config
}

type gemResponse struct {
	Name          string   `json:"name"`
	Info          string   `json:"info"`
	Version       string   `json:"version"`
	Downloads     int64    `json:"downloads"`
	Authors       string   `json:"authors"`
	Licenses      []string `json:"licenses"`
	HomepageURI   string   `json:"homepage_uri"`
	SourceCodeURI string   `json:"source_code_uri"`
}

type versionResponse struct {
	Number    string `json:"number"`
	Platform  string `json:"platform"`
	CreatedAt string `json:"created_at"`
}

func (a *Adapter) FetchMetadata(ctx context.Context, name string) (*core.Metadata, []core.Version, error) {
	var meta core.Metadata
	err := a.svc.Cache.Fetch(fmt.Sprintf("meta:%s:%s", ecosystem, name), cache.TTLShort, &meta, func() (any, error) {
		url := fmt.Sprintf("%s/api/v1/gems/%s.json", a.baseURL, name)

		var resp gemResponse
		if err := a.svc.HTTP.GetJSON(ctx, url, &resp); err != nil {
			if core.AbsentFromRegistry(err) {
				return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
			}
			return nil, err
		}

		return &core.Metadata{
			Name:       resp.Name,
			Repository: firstRepoURL(resp.SourceCodeURI, resp.HomepageURI),
			Attrs: map[string]any{
				"downloads": resp.Downloads,
				"author":    resp.Authors,
				"licenses":  strings.Join(resp.Licenses, ","),
				"info":      resp.Info,
			},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	versions, err := a.fetchVersions(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return &meta, versions, nil
}

func (a *Adapter) fetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	var versions []core.Version
	err := a.svc.Cache.Fetch(fmt.Sprintf("versions:%s:%s", ecosystem, name), cache.TTLLong, &versions, func() (any, error) {
		url := fmt.Sprintf("%s/api/v1/versions/%s.json", a.baseURL, name)

		var resp []versionResponse
		if err := a.svc.HTTP.GetJSON(ctx, url, &resp); err != nil {
			if core.AbsentFromRegistry(err) {
				return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
			}
			return nil, err
		}

		out := make([]core.Version, 0, len(resp))
		for _, v := range resp {
			var publishedAt time.Time
			if v.CreatedAt != "" {
				publishedAt, _ = time.Parse(time.RFC3339, v.CreatedAt)
			}
			number := v.Number
			if v.Platform != "" && v.Platform != "ruby" {
				number = fmt.Sprintf("%s-%s", v.Number, v.Platform)
			}
			out = append(out, core.Version{Number: number, PublishedAt: publishedAt})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (a *Adapter) CalculateTrust(name string, meta *core.Metadata, versions []core.Version) *core.TrustResult {
	result := &core.TrustResult{}

	points, reason := config.ScoreDownloads(meta.Downloads())
	result.AddSignal("downloads", points, reason)

	points, reason = config.ScoreAge(versions, time.Now())
	result.AddSignal("age", points, reason)

	points, reason = config.ScoreVersionCount(len(versions))
	result.AddSignal("versions", points, reason)

	return result
}

func (a *Adapter) FetchDependentsCount(ctx context.Context, name string) (int64, bool) {
	var count int64
	err := a.svc.Cache.Fetch(fmt.Sprintf("dependents:%s:%s", ecosystem, name), cache.TTLLong, &count, func() (any, error) {
		url := fmt.Sprintf("%s/api/v1/gems/%s/reverse_dependencies.json", a.baseURL, name)

		var names []string
		if err := a.svc.HTTP.GetJSON(ctx, url, &names); err != nil {
			return nil, err
		}
		return int64(len(names)), nil
	})
	if err != nil {
		return 0, false
	}
	return count, true
}

func (a *Adapter) ExtractSourceRepo(ctx context.Context, meta *core.Metadata) (string, string, bool) {
	return github.ParseRepoURL(meta.Repository)
}

func (a *Adapter) DetectAnomalies(ctx context.Context, name string, meta *core.Metadata, versions []core.Version) []core.Anomaly {
	now := time.Now()
	popular := topGems
	downloads := meta.Downloads()

	var out []core.Anomaly
	add := func(anomaly *core.Anomaly) {
		if anomaly != nil {
			out = append(out, *anomaly)
		}
	}

	add(detect.Typosquat(name, downloads, popular))
	add(detect.Homoglyph(name, popular))
	add(detect.NamespaceSquat(name, downloads, popular, nil))
	add(detect.DownloadInflation(downloads, versions, now))
	add(detect.VersionSpike(versions, now))
	add(detect.NewPackage(versions, now))
	add(detect.RapidVersioning(versions, now))
	add(detect.OwnershipChange(a.svc.Cache, ecosystem, name, meta.Author(), downloads))
	return out
}

func firstRepoURL(urls ...string) string {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if strings.Contains(u, "github.com") || strings.Contains(u, "gitlab.com") || strings.Contains(u, "bitbucket.org") {
			return u
		}
	}
	for _, u := range urls {
		if u != "" {
			return u
		}
	}
	return ""
}
