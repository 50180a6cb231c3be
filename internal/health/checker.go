// Package health runs periodic readiness probes over the custody service's
// dependencies and keeps an aggregate status for the health endpoint.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// ProbeFunc checks one dependency, returning nil when it is serviceable.
type ProbeFunc func(ctx context.Context) error

// ProbeStatus is one probe's most recent outcome.
type ProbeStatus struct {
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Status is the aggregate of all registered probes.
type Status struct {
	Healthy bool                   `json:"healthy"`
	Probes  map[string]ProbeStatus `json:"probes"`
}

type probe struct {
	name  string
	check ProbeFunc
}

// Checker runs registered probes on an interval. A probe flips to degraded
// only after FailThreshold consecutive failures, so a single slow database
// round trip does not flap the health endpoint.
type Checker struct {
	probes []probe
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	failCounts map[string]int
	lastErr    map[string]string
	degraded   map[string]bool
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		cfg:        cfg,
		logger:     logger,
		failCounts: make(map[string]int),
		lastErr:    make(map[string]string),
		degraded:   make(map[string]bool),
	}
}

// Register adds a named probe. Not safe to call after Start.
func (c *Checker) Register(name string, check ProbeFunc) {
	c.probes = append(c.probes, probe{name: name, check: check})
}

// Start runs the probe loop until quit is signalled. An initial pass runs
// immediately so the status is populated before the first tick.
func (c *Checker) Start(quit <-chan os.Signal) {
	c.CheckAll(context.Background())

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckAll(context.Background())
		case <-quit:
			return
		}
	}
}

// CheckAll runs every registered probe once.
func (c *Checker) CheckAll(ctx context.Context) {
	for _, p := range c.probes {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		err := p.check(probeCtx)
		cancel()

		c.mu.Lock()
		if err == nil {
			wasDegraded := c.degraded[p.name]
			c.failCounts[p.name] = 0
			c.degraded[p.name] = false
			delete(c.lastErr, p.name)
			c.mu.Unlock()

			if wasDegraded {
				c.logger.Info("health: probe recovered", zap.String("probe", p.name))
			}
			continue
		}

		c.failCounts[p.name]++
		count := c.failCounts[p.name]
		c.lastErr[p.name] = err.Error()
		if count == c.cfg.FailThreshold {
			c.degraded[p.name] = true
		}
		degraded := c.degraded[p.name]
		c.mu.Unlock()

		if count == c.cfg.FailThreshold {
			c.logger.Warn("health: probe degraded",
				zap.String("probe", p.name),
				zap.Int("fail_count", count),
				zap.Error(err),
			)
		} else if !degraded {
			c.logger.Debug("health: probe failed",
				zap.String("probe", p.name),
				zap.Int("fail_count", count),
				zap.Error(err),
			)
		}
	}
}

// Statuses reports the current per-probe state. Healthy is false as soon as
// any probe is degraded.
func (c *Checker) Statuses() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Status{Healthy: true, Probes: make(map[string]ProbeStatus, len(c.probes))}
	for _, p := range c.probes {
		ps := ProbeStatus{Degraded: c.degraded[p.name], Error: c.lastErr[p.name]}
		if ps.Degraded {
			out.Healthy = false
		}
		out.Probes[p.name] = ps
	}
	return out
}
