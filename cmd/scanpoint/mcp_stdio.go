package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ganot/scanpoint/internal/mcp"
	"github.com/ganot/scanpoint/internal/station"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP over stdio",
	Long: `Run the station and serve its MCP tools over stdin/stdout. Logs go to
stderr (or the configured log file) so stdout stays clean for JSON-RPC.`,
	RunE: runMCPStdio,
}

func runMCPStdio(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stderr)
	defer closeLog()

	st, closeDB, err := station.Build(cfg, log)
	if err != nil {
		log.Error("failed to build station", "error", err)
		return err
	}
	defer closeDB()
	defer st.Close()

	server := mcp.NewServer(mcp.Config{Station: st, Version: version, Logger: log})

	sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithCancel(sigCtx)
	defer cancelRun()

	log.Info("starting stdio transport", "station_id", st.ID())
	g, ctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return st.Run(ctx) })
	g.Go(func() error {
		// Stdin closing ends the session and with it the station.
		defer cancelRun()
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	})
	if err := g.Wait(); err != nil && sigCtx.Err() == nil {
		log.Error("stdio server error", "error", err)
		return err
	}
	return nil
}
