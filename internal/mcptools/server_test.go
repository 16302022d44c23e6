package mcptools

import (
	"context"
	"encoding/json"
	"net/http"
	"net"
	"net/http/httptest"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, svc *PipelineService, toolset *tools.Registry) *mcp.ClientSession {
	t.Helper()

	server := NewMCPServer(svc, toolset)
	st, ct := mcp.NewInMemoryTransports()

	ctx := context.Background()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})
	return session
}

func listToolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	return names
}

type echoArgs struct {
	Text string `json:"text"`
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t, NewPipelineService(newMockOrchestrator(), nil), nil)

	assert.Equal(t, []string{"get_run", "list_runs", "run_pipeline"}, listToolNames(t, session))
}

func TestMCPListTools_WithToolset(t *testing.T) {
	toolset := tools.NewRegistry()
	require.NoError(t, tools.Register(toolset, "echo", "Echo the input.",
		func(_ context.Context, in echoArgs) (echoArgs, error) {
			return in, nil
		}))

	session := setupServerClient(t, NewPipelineService(newMockOrchestrator(), nil), toolset)

	assert.Equal(t, []string{"echo", "get_run", "list_runs", "run_pipeline"}, listToolNames(t, session))
}

func TestMCPRunPipeline(t *testing.T) {
	mock := newMockOrchestrator()
	mock.outcome = publishedOutcome()
	session := setupServerClient(t, NewPipelineService(mock, nil), nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_pipeline",
		Arguments: RunPipelineInput{VideoID: "abc123"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out RunPipelineOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "published", out.Status)
	assert.Equal(t, "abc123", out.VideoID)
	assert.Equal(t, "https://calendar.example/event/1", out.ScheduledLink)
}

func TestMCPRunPipeline_MissingInputIsToolError(t *testing.T) {
	session := setupServerClient(t, NewPipelineService(newMockOrchestrator(), nil), nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_pipeline",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHTTPHandler_ServesMetrics(t *testing.T) {
	server := NewMCPServer(NewPipelineService(newMockOrchestrator(), nil), nil)
	srv := httptest.NewServer(NewHTTPHandler(server))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunHTTP_ListenFailureReturnsPromptly(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	before := runtime.NumGoroutine()
	server := NewMCPServer(NewPipelineService(newMockOrchestrator(), nil), nil)
	err = RunHTTP(context.Background(), server, busy.Addr().String())
	require.Error(t, err)

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		time.Second, 10*time.Millisecond, "shutdown watcher outlived a failed listen")
}

func TestRunHTTP_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := NewMCPServer(NewPipelineService(newMockOrchestrator(), nil), nil)

	errc := make(chan error, 1)
	go func() { errc <- RunHTTP(ctx, server, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunHTTP did not return after cancel")
	}
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
}
