// Package github fetches source-host repository facts used by stage-3
// trust scoring: star counts and owner type.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
)

const DefaultURL = "https://api.github.com"

// RepoFacts holds the subset of repository metadata trust scoring reads.
type RepoFacts struct {
	Stars     int64  `json:"stars"`
	Owner     string `json:"owner"`
	OwnerType string `json:"owner_type"`
}

// OrgOwned reports whether the repository belongs to an organization.
func (f *RepoFacts) OrgOwned() bool {
	return f.OwnerType == "Organization"
}

// Client fetches repository facts, long-TTL cached.
type Client struct {
	svc     *core.Services
	baseURL string
}

// New creates a client against api.github.com.
func New(svc *core.Services) *Client {
	return &Client{svc: svc, baseURL: DefaultURL}
}

// NewWithBaseURL creates a client against a custom API root.
func NewWithBaseURL(svc *core.Services, baseURL string) *Client {
	return &Client{svc: svc, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type repoResponse struct {
	StargazersCount int64 `json:"stargazers_count"`
	Owner           struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"owner"`
}

// RepoFacts returns facts for owner/repo. Results are cached for the
// long TTL; a quota-exhausted error propagates untouched so the scan
// can abort.
func (c *Client) RepoFacts(ctx context.Context, owner, repo string) (*RepoFacts, error) {
	key := fmt.Sprintf("repo:github:%s/%s", owner, repo)

	var facts RepoFacts
	err := c.svc.Cache.Fetch(key, cache.TTLLong, &facts, func() (any, error) {
		url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)

		var resp repoResponse
		if err := c.svc.HTTP.GetJSON(ctx, url, &resp); err != nil {
			return nil, err
		}
		return &RepoFacts{
			Stars:     resp.StargazersCount,
			Owner:     resp.Owner.Login,
			OwnerType: resp.Owner.Type,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &facts, nil
}

// AuthFunc returns a client auth function that presents token as a
// Bearer credential to the GitHub API and nothing else.
func AuthFunc(token string) func(url string) (string, string) {
	return func(url string) (string, string) {
		if token == "" {
			return "", ""
		}
		if strings.Contains(url, "api.github.com") {
			return "Authorization", "Bearer " + token
		}
		return "", ""
	}
}

// ParseRepoURL extracts owner and repo from a github.com URL.
func ParseRepoURL(repoURL string) (owner, repo string, ok bool) {
	idx := strings.Index(repoURL, "github.com/")
	if idx < 0 {
		return "", "", false
	}
	rest := strings.TrimSuffix(repoURL[idx+len("github.com/"):], "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	repo = strings.TrimSuffix(parts[1], ".git")
	return parts[0], repo, true
}
