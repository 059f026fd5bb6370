package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ganot/scanpoint/internal/config"
	"github.com/ganot/scanpoint/internal/registry"
	"github.com/ganot/scanpoint/internal/sqlite"
)

var registryNoAuth bool

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Run or seed the reference registry service",
	Long: `The registry holds identities, activities and attendance records. The
station resolves codes and writes check-ins against it over HTTP.`,
}

var registryServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry HTTP API",
	RunE:  runRegistryServe,
}

var registrySeedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load activities, identities and API keys from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistrySeed,
}

func init() {
	registryServeCmd.Flags().BoolVar(&registryNoAuth, "no-auth", false, "Accept requests without a station token")
	registryCmd.AddCommand(registryServeCmd)
	registryCmd.AddCommand(registrySeedCmd)
}

func openRegistryDB(cfg config.Config) (*sqlite.DB, error) {
	path := cfg.RegistryServer.DBPath
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("prepare database path: %w", err)
			}
		}
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateRegistry(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runRegistryServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stdout)
	defer closeLog()

	db, err := openRegistryDB(cfg)
	if err != nil {
		log.Error("failed to open registry database", "error", err)
		return err
	}
	defer db.Close()

	gin.SetMode(gin.ReleaseMode)
	svc := registry.NewService(sqlite.NewRegistryRepository(db), cfg.RegistryServer.APITokens, log)
	router := registry.NewRouter(svc, registry.RouterOptions{RequireAuth: !registryNoAuth, Logger: log})

	addr := fmt.Sprintf("%s:%d", cfg.RegistryServer.Host, cfg.RegistryServer.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("registry listening", "addr", addr, "auth", !registryNoAuth)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func runRegistrySeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stderr)
	defer closeLog()

	seed, err := registry.LoadSeedFile(args[0])
	if err != nil {
		return err
	}
	db, err := openRegistryDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := registry.NewService(sqlite.NewRegistryRepository(db), nil, log)
	stats, err := svc.Seed(cmd.Context(), seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d activities, %d identities, %d api keys\n",
		stats.Activities, stats.Identities, stats.APIKeys)
	return nil
}
