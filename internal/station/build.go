package station

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ganot/scanpoint/internal/client"
	"github.com/ganot/scanpoint/internal/config"
	"github.com/ganot/scanpoint/internal/connectivity"
	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
	"github.com/ganot/scanpoint/internal/sqlite"
)

// Build opens the station database and wires every component from cfg.
// The returned func closes the database.
func Build(cfg config.Config, log *slog.Logger) (*Station, func() error, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.MigrateStation(); err != nil {
		db.Close()
		return nil, nil, err
	}

	registry, err := client.New(cfg.Registry.URL, cfg.Registry.Token, cfg.Registry.Timeout, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	st := Assemble(Components{
		ID:         cfg.Station.ID,
		ActivityID: cfg.Station.ActivityID,
		DB:         db,
		Resolver:   registry,
		Store:      registry,
		Probe:      registry.Ping,
		Location:   loc,
		Config:     cfg,
	}, log)
	return st, db.Close, nil
}

// Components are the external pieces Assemble needs.
type Components struct {
	ID         string
	ActivityID string
	DB         *sqlite.DB
	Resolver   checkin.IdentityResolver
	Store      checkin.AttendanceStore
	Probe      connectivity.Probe
	Location   *time.Location
	Config     config.Config
}

// Assemble wires a station over an already-migrated database.
func Assemble(c Components, log *slog.Logger) *Station {
	cfg := c.Config

	queue := sqlite.NewPendingQueue(c.DB, cfg.Sync.HighWaterMark, log)
	journalSvc := journal.NewService(sqlite.NewJournalRepository(c.DB), log)
	monitor := connectivity.NewMonitor(c.Probe, connectivity.Options{
		Interval: cfg.Connectivity.ProbeInterval,
		Timeout:  cfg.Connectivity.ProbeTimeout,
	}, log)
	writer := checkin.NewWriter(c.Store, c.Location, log)

	orch := checkin.NewOrchestrator(checkin.Dependencies{
		Intake:   scan.NewDebouncer(cfg.Intake.SuppressionWindow),
		Monitor:  monitor,
		Resolver: c.Resolver,
		Writer:   writer,
		Queue:    queue,
		Journal:  journalSvc,
	}, checkin.Options{
		AutoConfirm:    cfg.Station.AutoConfirm,
		FeedbackDelay:  cfg.Display.FeedbackDelay,
		ErrorDelay:     cfg.Display.ErrorDelay,
		RequestTimeout: cfg.Registry.Timeout,
	}, log)

	engine := syncengine.New(queue, c.Resolver, writer, monitor, journalSvc, syncengine.Options{
		Interval:       cfg.Sync.Interval,
		RequestTimeout: cfg.Registry.Timeout,
	}, log)

	return New(Parts{
		ID:           c.ID,
		ActivityID:   c.ActivityID,
		Orchestrator: orch,
		Engine:       engine,
		Monitor:      monitor,
		Queue:        queue,
		Journal:      journalSvc,
	}, log)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
