package client

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// breakerSet holds one circuit breaker per registry host so a dead
// registry stops consuming the retry budget of the others.
type breakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: make(map[string]*circuit.Breaker)}
}

func (s *breakerSet) get(host string) *circuit.Breaker {
	s.mu.RLock()
	breaker, exists := s.breakers[host]
	s.mu.RUnlock()
	if exists {
		return breaker
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := s.breakers[host]; exists {
		return breaker
	}

	// Trips when 5 failures are counted in the breaker's rolling window
	// (a success in between does not reset the count), reopens on an
	// exponential schedule.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	s.breakers[host] = breaker
	return breaker
}

// call runs fn under the breaker for the URL's host. A 404 is a healthy
// response from the registry's point of view and records as success.
func (s *breakerSet) call(rawURL string, fn func() error) error {
	breaker := s.get(hostOf(rawURL))
	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", hostOf(rawURL), errCircuitOpen)
	}

	err := fn()
	if err == nil || IsNotFound(err) || IsFatal(err) {
		breaker.Success()
	} else {
		breaker.Fail()
	}
	return err
}

var errCircuitOpen = fmt.Errorf("upstream unavailable")

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
