// Package station assembles one check-in station: the scanning session, the
// pending queue, the sync engine and the connectivity monitor.
package station

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ganot/scanpoint/internal/connectivity"
	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
	"github.com/ganot/scanpoint/internal/logger"
)

// Queue is the station's view of the pending queue.
type Queue interface {
	PeekAll(ctx context.Context) ([]scan.QueuedScan, error)
	Count(ctx context.Context) (int, error)
}

// Station is the facade served by the HTTP API, the MCP tools and the CLI.
type Station struct {
	id         string
	activityID string
	orch       *checkin.Orchestrator
	engine     *syncengine.Engine
	monitor    *connectivity.Monitor
	queue      Queue
	journal    *journal.Service
	logger     *slog.Logger
}

// Parts are the assembled components of a station.
type Parts struct {
	ID           string
	ActivityID   string
	Orchestrator *checkin.Orchestrator
	Engine       *syncengine.Engine
	Monitor      *connectivity.Monitor
	Queue        Queue
	Journal      *journal.Service
}

func New(p Parts, log *slog.Logger) *Station {
	return &Station{
		id:         p.ID,
		activityID: p.ActivityID,
		orch:       p.Orchestrator,
		engine:     p.Engine,
		monitor:    p.Monitor,
		queue:      p.Queue,
		journal:    p.Journal,
		logger:     logger.OrDiscard(log),
	}
}

// ID returns the station identifier.
func (s *Station) ID() string { return s.id }

// ActivityID returns the activity scans are recorded against by default.
func (s *Station) ActivityID() string { return s.activityID }

// Submit feeds a decoded payload into the scanning session. An empty
// activityID falls back to the station's configured activity.
func (s *Station) Submit(ctx context.Context, payload, activityID string) (checkin.Snapshot, error) {
	if activityID == "" {
		activityID = s.activityID
	}
	return s.orch.Submit(ctx, payload, activityID)
}

func (s *Station) Confirm(ctx context.Context) (checkin.Snapshot, error) {
	return s.orch.Confirm(ctx)
}

func (s *Station) Reject(ctx context.Context) (checkin.Snapshot, error) {
	return s.orch.Reject(ctx)
}

func (s *Station) Snapshot() checkin.Snapshot {
	return s.orch.Snapshot()
}

func (s *Station) SubscribeState() (<-chan checkin.Snapshot, func()) {
	return s.orch.Subscribe()
}

func (s *Station) SubscribeSync() (<-chan syncengine.Status, func()) {
	return s.engine.Subscribe()
}

func (s *Station) SyncStatus(ctx context.Context) (syncengine.Status, error) {
	return s.engine.Status(ctx)
}

// TriggerSync asks the engine to drain. It reports false when a drain is
// already running.
func (s *Station) TriggerSync() bool {
	return s.engine.Trigger()
}

// Drain runs one drain synchronously. Used by the CLI.
func (s *Station) Drain(ctx context.Context) (syncengine.Result, error) {
	if s.monitor != nil {
		s.monitor.Check(ctx)
	}
	return s.engine.Drain(ctx)
}

func (s *Station) Pending(ctx context.Context) ([]scan.QueuedScan, error) {
	return s.queue.PeekAll(ctx)
}

func (s *Station) Journal(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	return s.journal.Recent(ctx, opts)
}

// Online reports the connectivity monitor's view.
func (s *Station) Online() bool {
	return s.monitor == nil || s.monitor.Online()
}

// Run drives connectivity probing and background sync until ctx is done.
func (s *Station) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, logger.Fields{Component: "scanpoint.station"})
	s.logger.InfoContext(ctx, "station running", "station_id", s.id, "activity_id", s.activityID)

	g, ctx := errgroup.WithContext(ctx)
	if s.monitor != nil {
		g.Go(func() error { return s.monitor.Run(ctx) })
	}
	g.Go(func() error { return s.engine.Run(ctx) })
	return g.Wait()
}

// Close stops display timers and releases subscribers.
func (s *Station) Close() {
	s.orch.Close()
}
