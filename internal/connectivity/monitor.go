// Package connectivity tracks whether the station can reach the registry.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ganot/scanpoint/internal/logger"
	"github.com/ganot/scanpoint/internal/notify"
)

// Transition names a change of connectivity.
type Transition string

const (
	WentOnline  Transition = "went_online"
	WentOffline Transition = "went_offline"
)

// Event is published on every transition.
type Event struct {
	Transition Transition `json:"transition"`
	At         time.Time  `json:"at"`
}

// Probe reports nil when the remote side is reachable.
type Probe func(ctx context.Context) error

// Options tunes the probe loop.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor holds the online flag. It starts optimistic: a wrong "online" is
// caught by the writer's error path, a wrong "offline" only delays syncing.
type Monitor struct {
	probe  Probe
	opts   Options
	logger *slog.Logger
	events *notify.Broadcaster[Event]

	mu     sync.RWMutex
	online bool
}

// NewMonitor creates a monitor. probe may be nil when transitions are pushed
// through Set by a platform signal adapter.
func NewMonitor(probe Probe, opts Options, log *slog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Monitor{
		probe:  probe,
		opts:   opts,
		logger: logger.OrDiscard(log),
		events: notify.NewBroadcaster[Event](4),
		online: true,
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe streams transitions.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	return m.events.Subscribe()
}

// Set records the observed state and publishes a transition if it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	ev := Event{Transition: WentOffline, At: time.Now()}
	if online {
		ev.Transition = WentOnline
	}
	// Publish under the lock so subscribers see transitions in order.
	m.events.Publish(ev)
	m.mu.Unlock()

	ctx := logger.WithFields(context.Background(), logger.Fields{Component: "scanpoint.connectivity"})
	m.logger.InfoContext(ctx, "connectivity changed", "transition", ev.Transition)
}

// Check runs the probe once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return m.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	err := m.probe(ctx)
	if err != nil {
		m.logger.DebugContext(ctx, "connectivity probe failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.events.Close()
	if m.probe == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
