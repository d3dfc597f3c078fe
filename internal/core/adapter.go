package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/git-pkgs/slopguard/client"
	"github.com/git-pkgs/slopguard/internal/cache"
)

// Services bundles the shared infrastructure threaded through every
// adapter: one rate-limited HTTP client and one disk cache per scan.
type Services struct {
	HTTP  *client.Client
	Cache *cache.Cache
}

// Adapter is the contract implemented by each ecosystem.
type Adapter interface {
	// Ecosystem returns the canonical PURL type (e.g. "gem", "pypi", "golang").
	Ecosystem() string

	// FetchMetadata is the canonical existence probe. It returns a
	// *NotFoundError when the package does not exist in this ecosystem.
	FetchMetadata(ctx context.Context, name string) (*Metadata, []Version, error)

	// CalculateTrust scores basic signals using only already-fetched data.
	CalculateTrust(name string, meta *Metadata, versions []Version) *TrustResult

	// FetchDependentsCount returns the reverse-dependency count.
	// ok is false when the registry has no dependents API or the call failed.
	FetchDependentsCount(ctx context.Context, name string) (count int64, ok bool)

	// ExtractSourceRepo parses a code-host owner/repo from metadata.
	ExtractSourceRepo(ctx context.Context, meta *Metadata) (owner, repo string, ok bool)

	// DetectAnomalies runs ecosystem-specific pattern checks.
	DetectAnomalies(ctx context.Context, name string, meta *Metadata, versions []Version) []Anomaly

	// Config returns the scoring configuration for this ecosystem.
	Config() *EcosystemConfig
}

// Factory creates an adapter bound to shared services.
type Factory func(svc *Services) Adapter

var (
	factories = make(map[string]Factory)
	aliases   = map[string]string{
		"ruby":        "gem",
		"rubygems":    "gem",
		"gem":         "gem",
		"python":      "pypi",
		"pip":         "pypi",
		"pypi":        "pypi",
		"go":          "golang",
		"golang":      "golang",
		"module-path": "golang",
	}
	mu sync.RWMutex
)

// Register adds an adapter factory under its canonical ecosystem tag.
// Adapters call this from init; import the all package to register everything.
func Register(ecosystem string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[ecosystem] = factory
}

// Normalize maps an ecosystem alias to its canonical tag.
// Returns "" for unsupported ecosystems.
func Normalize(ecosystem string) string {
	return aliases[ecosystem]
}

// New creates an adapter for the given ecosystem tag or alias.
func New(ecosystem string, svc *Services) (Adapter, error) {
	canonical := Normalize(ecosystem)
	if canonical == "" {
		canonical = ecosystem
	}

	mu.RLock()
	factory, ok := factories[canonical]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported ecosystem: %s", ecosystem)
	}
	return factory(svc), nil
}

// Supported returns all registered canonical ecosystem tags.
func Supported() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for eco := range factories {
		out = append(out, eco)
	}
	return out
}
