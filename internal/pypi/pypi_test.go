package pypi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/cache"
	"github.com/git-pkgs/slopguard/internal/core"
)

func testServices(t *testing.T) *core.Services {
	t.Helper()
	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	httpClient := client.New(client.WithBaseDelay(time.Millisecond), client.WithRateLimit(1000, 10000))
	return &core.Services{HTTP: httpClient, Cache: store}
}

const djangoJSON = `{
  "info": {
    "name": "Django",
    "author": "Django Software Foundation",
    "license": "BSD-3-Clause",
    "classifiers": [
      "Development Status :: 5 - Production/Stable",
      "Framework :: Django",
      "Programming Language :: Python :: 3"
    ],
    "project_urls": {
      "Homepage": "https://www.djangoproject.com/",
      "Source": "https://github.com/django/django"
    },
    "home_page": "",
    "requires_python": ">=3.10"
  },
  "releases": {
    "5.0": [
      {"upload_time_iso_8601": "2023-12-04T12:00:00Z", "yanked": false},
      {"upload_time_iso_8601": "2023-12-04T12:05:00Z", "yanked": false}
    ],
    "4.2": [
      {"upload_time_iso_8601": "2023-04-03T12:00:00Z", "yanked": false}
    ],
    "3.2": [
      {"upload_time_iso_8601": "2021-04-06T12:00:00Z", "yanked": false}
    ]
  }
}`

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"FOO_Bar":  "foo-bar",
		"foo-bar":  "foo-bar",
		"Django":   "django",
		"a_b_c":    "a-b-c",
		"requests": "requests",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetchMetadataNormalizesLookup(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(djangoJSON))
	}))
	defer server.Close()

	adapter := New(server.URL, testServices(t))
	meta, versions, err := adapter.FetchMetadata(context.Background(), "DJANGO")
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}

	if gotPath != "/pypi/django/json" {
		t.Errorf("lookup path = %q, want normalized /pypi/django/json", gotPath)
	}
	if meta.Name != "django" {
		t.Errorf("name = %q, want django", meta.Name)
	}
	if meta.Repository != "https://github.com/django/django" {
		t.Errorf("repository = %q", meta.Repository)
	}
	if meta.Author() != "Django Software Foundation" {
		t.Errorf("author = %q", meta.Author())
	}
	if len(versions) != 3 {
		t.Errorf("expected 3 versions, got %d", len(versions))
	}
}

func TestFetchMetadataNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	adapter := New(server.URL, testServices(t))
	_, _, err := adapter.FetchMetadata(context.Background(), "no-such-project")
	if !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestCalculateTrust(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(djangoJSON))
	}))
	defer server.Close()

	adapter := New(server.URL, testServices(t))
	meta, versions, err := adapter.FetchMetadata(context.Background(), "django")
	if err != nil {
		t.Fatal(err)
	}

	result := adapter.CalculateTrust("django", meta, versions)

	signals := map[string]int{}
	for _, e := range result.Breakdown {
		signals[e.Signal] = e.Points
	}

	// Oldest release 2021 -> 25 (age weight is raised for this registry).
	if signals["age"] != 25 {
		t.Errorf("age points = %d, want 25", signals["age"])
	}
	if signals["maturity"] != 10 {
		t.Errorf("maturity points = %d, want 10 for production/stable", signals["maturity"])
	}
	if signals["license"] != 5 {
		t.Errorf("license points = %d, want 5", signals["license"])
	}
	if signals["python3"] != 5 {
		t.Errorf("python3 points = %d, want 5", signals["python3"])
	}
	if result.Score != 45 {
		t.Errorf("score = %d, want 45", result.Score)
	}
}

func TestMaturityBonusTiers(t *testing.T) {
	cases := []struct {
		classifier string
		want       int
	}{
		{"Development Status :: 5 - Production/Stable", 10},
		{"Development Status :: 6 - Mature", 10},
		{"Development Status :: 4 - Beta", 5},
		{"Development Status :: 3 - Alpha", 2},
		{"Development Status :: 7 - Inactive", 0},
		{"Framework :: Django", 0},
	}
	for _, tc := range cases {
		points, _ := maturityBonus([]string{tc.classifier})
		if points != tc.want {
			t.Errorf("maturityBonus(%q) = %d, want %d", tc.classifier, points, tc.want)
		}
	}
}

func TestDependentsAlwaysUnavailable(t *testing.T) {
	adapter := New("", testServices(t))
	if _, ok := adapter.FetchDependentsCount(context.Background(), "django"); ok {
		t.Error("PyPI has no dependents API; expected unavailable")
	}
}

func TestPopularListFetch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"rows": [
			{"project": "boto3", "download_count": 1200000000},
			{"project": "Requests", "download_count": 800000000}
		]}`))
	}))
	defer server.Close()

	adapter := New("", testServices(t))
	adapter.popularURL = server.URL

	list := adapter.popularList(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[1].Name != "requests" {
		t.Errorf("expected normalized project name, got %q", list[1].Name)
	}

	// Long-TTL cached: a second call stays off the network.
	_ = adapter.popularList(context.Background())
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}

func TestPopularListFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	adapter := New("", testServices(t))
	adapter.popularURL = server.URL

	list := adapter.popularList(context.Background())
	if len(list) == 0 {
		t.Fatal("expected embedded fallback list")
	}
}

func TestDetectAnomaliesTyposquat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500) // popular feed down: fallback list
	}))
	defer server.Close()

	adapter := New("", testServices(t))
	adapter.popularURL = server.URL

	meta := &core.Metadata{Name: "requestss", Attrs: map[string]any{"author": "someone"}}
	versions := []core.Version{{Number: "0.1", PublishedAt: time.Now().Add(-400 * 24 * time.Hour)}}

	anomalies := adapter.DetectAnomalies(context.Background(), "requestss", meta, versions)

	found := false
	for _, a := range anomalies {
		if a.Type == "typosquat" && a.TargetPackage == "requests" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected typosquat targeting requests, got %+v", anomalies)
	}
}
