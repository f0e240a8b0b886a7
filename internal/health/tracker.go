// Package health tracks whether the AI engine is reachable.
//
// The tracker is advisory only: it never gates gateway calls, and its state
// may lag behind the success or failure of real requests.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/ai-gateway/internal/upstream"
)

// Prober checks the AI engine health endpoint.
type Prober interface {
	Health(ctx context.Context) (*upstream.HealthStatus, error)
}

// State is the last known availability of the AI engine. Checked is false
// until the first probe has completed.
type State struct {
	Available     bool      `json:"available"`
	Checked       bool      `json:"checked"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithOnChange registers a hook invoked after every probe that changes the
// availability (including the first probe).
func WithOnChange(fn func(State)) Option {
	return func(t *Tracker) {
		t.onChange = fn
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker owns the AI engine availability cell.
type Tracker struct {
	prober   Prober
	logger   *slog.Logger
	onChange func(State)
	now      func() time.Time

	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]chan State
	nextID int
}

// NewTracker creates a tracker and performs the initial probe.
func NewTracker(ctx context.Context, prober Prober, opts ...Option) *Tracker {
	t := &Tracker{
		prober: prober,
		logger: slog.Default(),
		now:    time.Now,
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Probe(ctx)
	return t
}

// Probe queries the health endpoint and records the outcome. It never
// returns an error: any failure means unavailable.
func (t *Tracker) Probe(ctx context.Context) bool {
	status, err := t.prober.Health(ctx)
	available := err == nil && status.Healthy()

	if err != nil {
		t.logger.Debug("AI engine health probe failed", "error", err)
	} else if !available {
		t.logger.Debug("AI engine reported unhealthy", "status", status.Status)
	}

	next := State{Available: available, Checked: true, LastCheckedAt: t.now()}

	t.mu.Lock()
	prev := t.state
	t.state = next
	t.mu.Unlock()

	if !prev.Checked || prev.Available != next.Available {
		t.logger.Info("AI engine availability changed", "available", available, "first_probe", !prev.Checked)
		if t.onChange != nil {
			t.onChange(next)
		}
		t.publish(next)
	}
	return available
}

// IsAvailable returns the last known availability without blocking on the network.
func (t *Tracker) IsAvailable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Available
}

// State returns a snapshot of the last probe.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Run probes every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("Health tracker started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			t.Probe(ctx)
		case <-ctx.Done():
			t.logger.Info("Health tracker shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Subscribe returns a channel receiving availability changes and a function
// that ends the subscription. Slow subscribers only see the latest state.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (t *Tracker) publish(s State) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	for _, ch := range t.subs {
		select {
		case ch <- s:
		default:
			// Drop the stale value and keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
