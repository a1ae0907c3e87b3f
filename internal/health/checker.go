// Package health runs periodic probes against the server's dependencies and
// keeps a snapshot for the healthz endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Statuses a probed dependency can be in.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency. A nil return means healthy.
type Probe func(ctx context.Context) error

// Check is a named dependency probe.
type Check struct {
	Name  string
	Probe Probe
}

// Checker runs the registered probes on an interval and tracks consecutive
// failures per dependency. A dependency is reported degraded only after
// FailThreshold consecutive failures, so one slow Postgres ping does not flip
// the healthz endpoint.
type Checker struct {
	checks []Check
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	failCounts map[string]int
	statuses   map[string]string
}

// New creates a Checker over the given dependency checks.
func New(checks []Check, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	statuses := make(map[string]string, len(checks))
	for _, c := range checks {
		statuses[c.Name] = StatusHealthy
	}

	return &Checker{
		checks:     checks,
		cfg:        cfg,
		logger:     logger,
		failCounts: make(map[string]int),
		statuses:   statuses,
	}
}

// Start runs the check loop until done is closed.
func (h *Checker) Start(done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CheckInterval-time.Second)
			h.CheckAll(ctx)
			cancel()
		case <-done:
			return
		}
	}
}

// CheckAll probes every dependency once, concurrently.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range h.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := c.Probe(probeCtx)
			cancel()

			h.record(c.Name, err)
		}(c)
	}
	wg.Wait()
}

// record applies one probe outcome to the failure counters.
func (h *Checker) record(name string, probeErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.failCounts[name]
	if probeErr == nil {
		h.failCounts[name] = 0
		h.statuses[name] = StatusHealthy
		if prev >= h.cfg.FailThreshold {
			h.logger.Info("health: recovered", zap.String("dependency", name))
		}
		return
	}

	h.failCounts[name]++
	if h.failCounts[name] == h.cfg.FailThreshold {
		// Transition: healthy → degraded (exactly at threshold)
		h.statuses[name] = StatusDegraded
		h.logger.Warn("health: degraded",
			zap.String("dependency", name),
			zap.Int("fail_count", h.failCounts[name]),
			zap.Error(probeErr),
		)
	}
}

// Snapshot returns the per-dependency statuses.
func (h *Checker) Snapshot() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]string, len(h.statuses))
	for k, v := range h.statuses {
		out[k] = v
	}
	return out
}

// Healthy reports whether every dependency is currently healthy.
func (h *Checker) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.statuses {
		if s != StatusHealthy {
			return false
		}
	}
	return true
}
