package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines station and registry configuration.
type Config struct {
	Station        StationConfig        `yaml:"station"`
	Server         ServerConfig         `yaml:"server"`
	DB             DBConfig             `yaml:"db"`
	Log            LogConfig            `yaml:"log"`
	Registry       RegistryConfig       `yaml:"registry"`
	Intake         IntakeConfig         `yaml:"intake"`
	Sync           SyncConfig           `yaml:"sync"`
	Connectivity   ConnectivityConfig   `yaml:"connectivity"`
	Display        DisplayConfig        `yaml:"display"`
	RegistryServer RegistryServerConfig `yaml:"registry_server"`
}

type StationConfig struct {
	ID          string `yaml:"id"`
	ActivityID  string `yaml:"activity_id"`
	AutoConfirm bool   `yaml:"auto_confirm"`
	Timezone    string `yaml:"timezone"`
	APIToken    string `yaml:"api_token"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// RegistryConfig points the station at the remote identity directory and attendance store.
type RegistryConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type IntakeConfig struct {
	SuppressionWindow time.Duration `yaml:"suppression_window"`
}

type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	HighWaterMark int           `yaml:"high_water_mark"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

type DisplayConfig struct {
	FeedbackDelay time.Duration `yaml:"feedback_delay"`
	ErrorDelay    time.Duration `yaml:"error_delay"`
}

// RegistryServerConfig configures the reference registry service.
type RegistryServerConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	DBPath    string   `yaml:"db_path"`
	APITokens []string `yaml:"api_tokens"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	return Config{
		Station: StationConfig{
			ID:       "station-1",
			Timezone: "Local",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "scanpoint.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Registry: RegistryConfig{
			URL:     "http://127.0.0.1:8090",
			Timeout: 8 * time.Second,
		},
		Intake: IntakeConfig{
			SuppressionWindow: 2 * time.Second,
		},
		Sync: SyncConfig{
			Interval:      45 * time.Second,
			HighWaterMark: 500,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 10 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Display: DisplayConfig{
			FeedbackDelay: 2 * time.Second,
			ErrorDelay:    3 * time.Second,
		},
		RegistryServer: RegistryServerConfig{
			Host:   "0.0.0.0",
			Port:   8090,
			DBPath: "registry.db",
		},
	}
}

// Load reads configuration from an optional YAML file, an optional .env file
// and SCANPOINT_* environment variables, in that order of precedence (lowest first).
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("SCANPOINT_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SCANPOINT_STATION_ID"); v != "" {
		cfg.Station.ID = v
	}
	if v := os.Getenv("SCANPOINT_ACTIVITY_ID"); v != "" {
		cfg.Station.ActivityID = v
	}
	if v := os.Getenv("SCANPOINT_AUTO_CONFIRM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_AUTO_CONFIRM: %w", err)
		}
		cfg.Station.AutoConfirm = b
	}
	if v := os.Getenv("SCANPOINT_TIMEZONE"); v != "" {
		cfg.Station.Timezone = v
	}
	if v := os.Getenv("SCANPOINT_API_TOKEN"); v != "" {
		cfg.Station.APIToken = v
	}
	if v := os.Getenv("SCANPOINT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCANPOINT_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SCANPOINT_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("SCANPOINT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCANPOINT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SCANPOINT_LOG_PATH"); v != "" {
		cfg.Log.Path = v
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_URL"); v != "" {
		cfg.Registry.URL = v
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_TOKEN"); v != "" {
		cfg.Registry.Token = v
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_REGISTRY_TIMEOUT: %w", err)
		}
		cfg.Registry.Timeout = d
	}
	if v := os.Getenv("SCANPOINT_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_SYNC_INTERVAL: %w", err)
		}
		cfg.Sync.Interval = d
	}
	if v := os.Getenv("SCANPOINT_HIGH_WATER_MARK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_HIGH_WATER_MARK: %w", err)
		}
		cfg.Sync.HighWaterMark = n
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SCANPOINT_REGISTRY_SERVER_PORT: %w", err)
		}
		cfg.RegistryServer.Port = port
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_SERVER_DB_PATH"); v != "" {
		cfg.RegistryServer.DBPath = v
	}
	if v := os.Getenv("SCANPOINT_REGISTRY_SERVER_TOKENS"); v != "" {
		cfg.RegistryServer.APITokens = splitList(v)
	}
	return nil
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Registry.Timeout <= 0 {
		errs = append(errs, errors.New("registry.timeout must be positive"))
	}
	if c.Intake.SuppressionWindow < 0 {
		errs = append(errs, errors.New("intake.suppression_window must not be negative"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Connectivity.ProbeInterval <= 0 || c.Connectivity.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("connectivity probe interval and timeout must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location resolves the station time zone used for day bucketing.
func (c Config) Location() (*time.Location, error) {
	if c.Station.Timezone == "" || c.Station.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Station.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid station.timezone: %w", err)
	}
	return loc, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
