package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ganot/scanpoint/internal/mcp"
	"github.com/ganot/scanpoint/internal/station"
	"github.com/ganot/scanpoint/internal/transport"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station with its HTTP API and MCP endpoint",
	Long: `Run the check-in station. The HTTP API accepts scans on /v1/scans, streams
state changes on /v1/events and serves MCP on /mcp. Background sync drains the
pending queue whenever the registry becomes reachable.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stdout)
	defer closeLog()

	st, closeDB, err := station.Build(cfg, log)
	if err != nil {
		log.Error("failed to build station", "error", err)
		return err
	}
	defer closeDB()
	defer st.Close()

	mcpServer := mcp.NewServer(mcp.Config{Station: st, Version: version, Logger: log})
	handler := transport.NewServer(st, transport.AuthMiddleware(cfg.Station.APIToken), log, map[string]http.Handler{
		"/mcp": mcp.NewHTTPHandler(mcpServer),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := newHTTPServer(addr, handler, st)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Run(ctx) })
	g.Go(func() error {
		log.Info("server listening", "addr", addr, "station_id", st.ID(), "activity_id", st.ActivityID())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return err
	}
	return nil
}

// newHTTPServer releases the station's state subscribers as soon as shutdown
// starts, so open event streams return instead of holding Shutdown until its
// deadline.
func newHTTPServer(addr string, handler http.Handler, st *station.Station) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(st.Close)
	return srv
}
