package gomod

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
	"github.com/git-pkgs/slopguard/internal/github"
)

// vanityResolver maps custom-domain module paths (gopkg.in/yaml.v3,
// k8s.io/client-go) to their backing repository via the go-import meta
// tag protocol.
type vanityResolver struct {
	svc    *core.Services
	scheme string
}

func newVanityResolver(svc *core.Services) *vanityResolver {
	return &vanityResolver{svc: svc, scheme: "https"}
}

var goImportTag = regexp.MustCompile(`<meta\s+name="go-import"\s+content="([^"]+)"`)

type vanityRecord struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// resolve fetches the module path with ?go-get=1 and parses the
// go-import meta tag. Only GitHub-backed repos yield a result; other
// hosts leave source scoring without a signal.
func (v *vanityResolver) resolve(ctx context.Context, modulePath string) (string, string, bool) {
	var record vanityRecord
	key := "vanity:" + modulePath
	err := v.svc.Cache.Fetch(key, cache.TTLLong, &record, func() (any, error) {
		url := fmt.Sprintf("%s://%s?go-get=1", v.scheme, modulePath)

		body, err := v.svc.HTTP.GetText(ctx, url)
		if err != nil {
			return nil, err
		}

		for _, match := range goImportTag.FindAllStringSubmatch(body, -1) {
			fields := strings.Fields(match[1])
			// content="import-prefix vcs repo-root"
			if len(fields) != 3 {
				continue
			}
			if !strings.HasPrefix(modulePath, fields[0]) {
				continue
			}
			if owner, repo, ok := github.ParseRepoURL(fields[2]); ok {
				return &vanityRecord{Owner: owner, Repo: repo}, nil
			}
		}
		return nil, fmt.Errorf("no usable go-import tag at %s", modulePath)
	})
	if err != nil || record.Owner == "" {
		return "", "", false
	}
	return record.Owner, record.Repo, true
}
