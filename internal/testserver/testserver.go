// Package testserver starts a registry and a station wired over real HTTP
// for end-to-end tests.
package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ganot/scanpoint/internal/client"
	"github.com/ganot/scanpoint/internal/config"
	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/mcp"
	"github.com/ganot/scanpoint/internal/registry"
	"github.com/ganot/scanpoint/internal/sqlite"
	"github.com/ganot/scanpoint/internal/station"
	"github.com/ganot/scanpoint/internal/transport"
)

// DefaultSeed registers a two-day activity, a one-day activity, two
// identities and the token "gate-token" for station "gate-2".
const DefaultSeed = `
activities:
  - id: A1
    name: Workshop
    duration_days: 2
  - id: B1
    name: Keynote
    duration_days: 1
identities:
  - id: i1
    code: U1001
    display_name: Ana
    attributes:
      role: student
  - id: i2
    code: U1002
    display_name: Bo
api_keys:
  - token: gate-token
    station_id: gate-2
`

// Registry is a registry service behind an httptest server. SetDown makes
// every request fail with 503 to simulate an outage.
type Registry struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Service *registry.Service
	Token   string

	down atomic.Bool
}

// NewRegistry starts a registry seeded from seed, requiring bearer auth.
func NewRegistry(t *testing.T, seed string) *Registry {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.MigrateRegistry())

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	file, err := registry.LoadSeedFile(path)
	require.NoError(t, err)

	svc := registry.NewService(sqlite.NewRegistryRepository(db), nil, nil)
	_, err = svc.Seed(context.Background(), file)
	require.NoError(t, err)

	reg := &Registry{DB: db, Service: svc, Token: "gate-token"}
	router := registry.NewRouter(svc, registry.RouterOptions{RequireAuth: true})
	reg.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reg.down.Load() {
			http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))

	t.Cleanup(func() {
		reg.Server.Close()
		_ = db.Close()
	})
	return reg
}

// SetDown toggles the simulated outage.
func (r *Registry) SetDown(down bool) {
	r.down.Store(down)
}

// Count returns the stored check-ins for identityID in activityID.
func (r *Registry) Count(t *testing.T, identityID, activityID string) int {
	t.Helper()
	n, err := r.Service.CountCheckIns(context.Background(), identityID, activityID)
	require.NoError(t, err)
	return n
}

// Station is a station assembled against a Registry, with its HTTP API
// (MCP endpoint included) behind an httptest server.
type Station struct {
	*station.Station
	DB     *sqlite.DB
	Server *httptest.Server
}

// StationOptions tunes NewStation.
type StationOptions struct {
	// DBPath is the station database file. Defaults to a fresh temp file.
	DBPath      string
	AutoConfirm bool
	APIToken    string
}

// Config returns the station configuration used by NewStation, with short
// display delays so tests do not wait on the screen.
func Config(reg *Registry, opts StationOptions) config.Config {
	cfg := config.Default()
	cfg.Station.ID = "gate-2"
	cfg.Station.ActivityID = "A1"
	cfg.Station.AutoConfirm = opts.AutoConfirm
	cfg.Station.Timezone = "UTC"
	cfg.Station.APIToken = opts.APIToken
	cfg.Registry.URL = reg.Server.URL
	cfg.Registry.Token = reg.Token
	cfg.Registry.Timeout = 2 * time.Second
	cfg.Display.FeedbackDelay = 10 * time.Millisecond
	cfg.Display.ErrorDelay = 10 * time.Millisecond
	cfg.Sync.Interval = time.Hour
	cfg.DB.Path = opts.DBPath
	return cfg
}

// NewStation opens (or reopens) a station database and assembles a station.
// Closing the returned station's DB early simulates a crash; cleanup
// tolerates that.
func NewStation(t *testing.T, reg *Registry, opts StationOptions) *Station {
	t.Helper()
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(t.TempDir(), "station.db")
	}
	cfg := Config(reg, opts)

	db, err := sqlite.New(cfg.DB.Path)
	require.NoError(t, err)
	require.NoError(t, db.MigrateStation())

	registryClient, err := client.New(cfg.Registry.URL, cfg.Registry.Token, cfg.Registry.Timeout, nil)
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)

	st := station.Assemble(station.Components{
		ID:         cfg.Station.ID,
		ActivityID: cfg.Station.ActivityID,
		DB:         db,
		Resolver:   registryClient,
		Store:      registryClient,
		Probe:      registryClient.Ping,
		Location:   loc,
		Config:     cfg,
	}, nil)

	mcpServer := mcp.NewServer(mcp.Config{Station: st, Version: "test"})
	handler := transport.NewServer(st, transport.AuthMiddleware(cfg.Station.APIToken), nil, map[string]http.Handler{
		"/mcp": mcp.NewHTTPHandler(mcpServer),
	})
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.Close()
		st.Close()
		_ = db.Close()
	})
	return &Station{Station: st, DB: db, Server: server}
}

// WaitScanning blocks until the station is ready for the next scan.
func (s *Station) WaitScanning(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == checkin.StateScanning
	}, 2*time.Second, 5*time.Millisecond)
}
