package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCANPOINT_CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.Intake.SuppressionWindow)
	require.Equal(t, 45*time.Second, cfg.Sync.Interval)
	require.Equal(t, 500, cfg.Sync.HighWaterMark)
	require.Equal(t, 8*time.Second, cfg.Registry.Timeout)
	require.False(t, cfg.Station.AutoConfirm)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "scanpoint.yaml")
	data := []byte(`
station:
  id: gate-2
  activity_id: A1
  auto_confirm: true
  timezone: UTC
registry:
  url: http://registry.local
  timeout: 5s
intake:
  suppression_window: 1500ms
sync:
  interval: 30s
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("SCANPOINT_SERVER_PORT", "9191")
	t.Setenv("SCANPOINT_REGISTRY_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gate-2", cfg.Station.ID)
	require.Equal(t, "A1", cfg.Station.ActivityID)
	require.True(t, cfg.Station.AutoConfirm)
	require.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	require.Equal(t, 1500*time.Millisecond, cfg.Intake.SuppressionWindow)
	require.Equal(t, 30*time.Second, cfg.Sync.Interval)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "secret", cfg.Registry.Token)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCANPOINT_STATION_ID=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SCANPOINT_STATION_ID") })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Station.ID)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCANPOINT_SERVER_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Registry.Timeout = 0
	cfg.Station.Timezone = "Mars/Olympus"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry.timeout")
	require.Contains(t, err.Error(), "station.timezone")
	require.Contains(t, err.Error(), "log.format")
}
