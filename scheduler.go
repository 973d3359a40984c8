package unitrouter

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// RerouteScheduler triggers routing passes on a cron schedule, so activity
// functions that depend on more than the location (time of day, feature
// flags) are re-evaluated. It also retries LOAD_ERROR units once their
// backoff has passed.
type RerouteScheduler struct {
	router *Router
	spec   string

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
}

// NewRerouteScheduler validates spec (standard five-field syntax or a
// descriptor such as "@every 30s").
func NewRerouteScheduler(r *Router, spec string) (*RerouteScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reroute schedule %q: %w", spec, err)
	}
	return &RerouteScheduler{router: r, spec: spec}, nil
}

// Start begins scheduling. Calling it twice is a no-op.
func (s *RerouteScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	c := cron.New()
	id, err := c.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("schedule reroute: %w", err)
	}
	c.Start()
	s.cron, s.entry, s.running = c, id, true
	s.router.logger.Info("Reroute scheduler started", "schedule", s.spec)
	return nil
}

func (s *RerouteScheduler) tick() {
	res := <-s.router.Trigger(nil)
	if res.Err != nil {
		s.router.logger.Warn("Scheduled reroute failed", "error", res.Err)
	}
}

// Stop halts scheduling and waits for a running tick until ctx is done.
func (s *RerouteScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	stopped := c.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
