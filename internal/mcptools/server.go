package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// version is set by the linker at build time.
var version = "dev"

// Version returns the build version.
func Version() string {
	return version
}

// NewMCPServer creates an MCP server with run_pipeline, get_run and list_runs
// registered. When toolset is non-nil its tools are exposed as well.
func NewMCPServer(svc *PipelineService, toolset *tools.Registry) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "socialbot",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Turn a video transcript into social posts: write, evaluate, and when the critic score passes, store and schedule them. Give a videoId or a transcript.",
	}, svc.RunPipeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run",
		Description: "Get the recorded result of one pipeline run by ID.",
	}, svc.GetRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List recent pipeline runs, newest first, with their status and critic score.",
	}, svc.ListRuns)

	if toolset != nil {
		toolset.MountMCP(server)
	}
	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves the MCP server at /mcp and Prometheus metrics at
// /metrics.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// RunHTTP serves NewHTTPHandler on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
