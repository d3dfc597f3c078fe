package gomod

import (
	"context"
	"fmt"
	"net/url"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
)

const DefaultDepsDevURL = "https://api.deps.dev"

// depsDevClient reads project facts from the deps.dev aggregator.
// Every answer is optional: a miss just removes a scoring signal.
type depsDevClient struct {
	baseURL string
	svc     *core.Services
}

func newDepsDevClient(svc *core.Services) *depsDevClient {
	return &depsDevClient{baseURL: DefaultDepsDevURL, svc: svc}
}

type projectFacts struct {
	Scorecard float64 `json:"scorecard"`
	License   string  `json:"license"`
	Stars     int64   `json:"stars"`
	Described bool    `json:"described"`
}

type projectResponse struct {
	StarsCount  int64  `json:"starsCount"`
	License     string `json:"license"`
	Description string `json:"description"`
	Scorecard   struct {
		OverallScore float64 `json:"overallScore"`
	} `json:"scorecard"`
}

// projectFacts returns aggregator facts for a GitHub project, or nil
// when the project is unknown or unreachable.
func (d *depsDevClient) projectFacts(ctx context.Context, owner, repo string) *projectFacts {
	if owner == "" || repo == "" {
		return nil
	}
	projectID := fmt.Sprintf("github.com/%s/%s", owner, repo)

	var facts projectFacts
	err := d.svc.Cache.Fetch("depsdev:project:"+projectID, cache.TTLLong, &facts, func() (any, error) {
		reqURL := fmt.Sprintf("%s/v3/projects/%s", d.baseURL, url.PathEscape(projectID))

		var resp projectResponse
		if err := d.svc.HTTP.GetJSON(ctx, reqURL, &resp); err != nil {
			return nil, err
		}
		return &projectFacts{
			Scorecard: resp.Scorecard.OverallScore,
			License:   resp.License,
			Stars:     resp.StarsCount,
			Described: resp.Description != "",
		}, nil
	})
	if err != nil {
		return nil
	}
	return &facts
}

type versionResponse struct {
	AdvisoryKeys []struct {
		ID string `json:"id"`
	} `json:"advisoryKeys"`
}

// advisoryCount returns the number of known advisories against a
// version, or 0 when the signal is unavailable.
func (d *depsDevClient) advisoryCount(ctx context.Context, name, version string) int {
	var count int
	key := fmt.Sprintf("depsdev:advisories:%s@%s", name, version)
	err := d.svc.Cache.Fetch(key, cache.TTLShort, &count, func() (any, error) {
		reqURL := fmt.Sprintf("%s/v3/systems/go/packages/%s/versions/%s",
			d.baseURL, url.PathEscape(name), url.PathEscape(version))

		var resp versionResponse
		if err := d.svc.HTTP.GetJSON(ctx, reqURL, &resp); err != nil {
			return nil, err
		}
		return len(resp.AdvisoryKeys), nil
	})
	if err != nil {
		return 0
	}
	return count
}

type dependentsResponse struct {
	DependentCount int64 `json:"dependentCount"`
}

// dependentCount returns the reverse-dependency count deps.dev reports.
func (d *depsDevClient) dependentCount(ctx context.Context, name, version string) (int64, bool) {
	var count int64
	key := fmt.Sprintf("dependents:%s:%s", ecosystem, name)
	err := d.svc.Cache.Fetch(key, cache.TTLLong, &count, func() (any, error) {
		reqURL := fmt.Sprintf("%s/v3alpha/systems/go/packages/%s/versions/%s:dependents",
			d.baseURL, url.PathEscape(name), url.PathEscape(version))

		var resp dependentsResponse
		if err := d.svc.HTTP.GetJSON(ctx, reqURL, &resp); err != nil {
			return nil, err
		}
		return resp.DependentCount, nil
	})
	if err != nil {
		return 0, false
	}
	return count, true
}
