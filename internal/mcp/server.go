package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
)

// Station defines the station operations exposed as tools.
type Station interface {
	ID() string
	ActivityID() string
	Online() bool
	Submit(ctx context.Context, payload, activityID string) (checkin.Snapshot, error)
	Confirm(ctx context.Context) (checkin.Snapshot, error)
	Reject(ctx context.Context) (checkin.Snapshot, error)
	Snapshot() checkin.Snapshot
	SyncStatus(ctx context.Context) (syncengine.Status, error)
	TriggerSync() bool
	Pending(ctx context.Context) ([]scan.QueuedScan, error)
	Journal(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error)
}

// Config contains server configuration.
type Config struct {
	Station Station
	Version string
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "scanpoint",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(stationMiddleware(cfg.Station.ID()))
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Station)

	return server
}
