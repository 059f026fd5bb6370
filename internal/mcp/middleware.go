package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/scanpoint/internal/logger"
)

type contextKey int

const stationIDKey contextKey = iota

func getStationID(ctx context.Context) string {
	v, _ := ctx.Value(stationIDKey).(string)
	return v
}

// stationMiddleware tags every request with the station it is served by.
// HTTP auth happens in front of the MCP handler.
func stationMiddleware(stationID string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, stationIDKey, stationID)
			ctx = logger.WithFields(ctx, logger.Fields{Component: "scanpoint.mcp"})
			return next(ctx, method, req)
		}
	}
}
