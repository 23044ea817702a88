// Package health provides liveness and readiness tracking for the
// session service's external dependencies.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is implemented by dependencies that can answer a cheap
// connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker tracks the health of a single named dependency by probing it
// periodically in the background.
type Checker struct {
	name     string
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
	healthy  atomic.Bool
}

// NewChecker creates a checker for the given dependency. The first probe
// runs when Start is called; until then the dependency reports unhealthy.
func NewChecker(name string, p Pinger, interval time.Duration, log zerolog.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{
		name:     name,
		pinger:   p,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
}

// Name returns the dependency name.
func (c *Checker) Name() string { return c.name }

// IsHealthy reports the result of the most recent probe.
func (c *Checker) IsHealthy() bool { return c.healthy.Load() }

// Start begins background probing until ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.probe(ctx)
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.probe(ctx)
			}
		}
	}()
}

func (c *Checker) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.pinger.Ping(pctx)
	was := c.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		c.log.Warn().Err(err).Str("dependency", c.name).Msg("dependency became unhealthy")
	case err == nil && !was:
		c.log.Info().Str("dependency", c.name).Msg("dependency healthy")
	}
}

// Service aggregates checkers and answers readiness for the whole service.
type Service struct {
	mu       sync.RWMutex
	checkers []*Checker
}

// NewService creates an empty aggregate.
func NewService() *Service { return &Service{} }

// Register adds a checker to the aggregate.
func (s *Service) Register(c *Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, c)
}

// Ready reports whether every registered dependency is healthy, along
// with a per-dependency breakdown.
func (s *Service) Ready() (bool, map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ready := true
	detail := make(map[string]bool, len(s.checkers))
	for _, c := range s.checkers {
		ok := c.IsHealthy()
		detail[c.Name()] = ok
		ready = ready && ok
	}
	return ready, detail
}
