package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codeide/api"
	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/logger"
	"github.com/isdmx/codeide/mcpserver"
	"github.com/isdmx/codeide/sandbox"
	"github.com/isdmx/codeide/storage/sqlite"
)

// EchoEngine implements sandbox.Engine by echoing the mounted source file to stdout
type EchoEngine struct {
	removed int
}

func (e *EchoEngine) Create(_ context.Context, spec sandbox.ContainerSpec) (sandbox.Handle, error) {
	return sandbox.Handle{ID: spec.Name, Name: spec.HostDir}, nil
}

func (e *EchoEngine) Run(_ context.Context, h sandbox.Handle, _ string) (sandbox.Exit, error) {
	entries, err := os.ReadDir(h.Name)
	if err != nil {
		return sandbox.Exit{}, err
	}
	src, err := os.ReadFile(filepath.Join(h.Name, entries[0].Name()))
	if err != nil {
		return sandbox.Exit{}, err
	}

	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write(src)
	return sandbox.Exit{StatusCode: 0, Output: buf.Bytes()}, nil
}

func (e *EchoEngine) Remove(context.Context, sandbox.Handle) error {
	e.removed++
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort:           5000,
			ShutdownTimeoutSec: 1,
			MaxBodyMB:          10,
			CORSOrigins:        []string{"*"},
			MCPEnabled:         true,
		},
		Sandbox: config.SandboxConfig{
			TimeoutMS:     5000,
			MemoryMB:      128,
			User:          "nobody",
			Workdir:       "/code",
			WorkspaceRoot: t.TempDir(),
			MaxConcurrent: 4,
		},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
		Storage: config.StorageConfig{DBPath: ":memory:"},
		Languages: map[string]config.Language{
			"python": {Image: "python:3.11-slim"},
			"cpp":    {Image: "gcc:13"},
			"nodejs": {Image: "node:20-alpine"},
		},
	}
}

// TestIntegrationHTTPExecution drives a request through the HTTP API, the
// execution service and the runner with a real workspace on disk
func TestIntegrationHTTPExecution(t *testing.T) {
	cfg := testConfig(t)

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	require.NoError(t, err)

	registry, err := language.NewFromConfig(cfg)
	require.NoError(t, err)

	engine := &EchoEngine{}
	runner := sandbox.NewRunnerFromConfig(log, cfg, registry, engine)
	svc := execution.NewFromConfig(log, cfg, registry, runner)

	store, err := sqlite.Open(cfg.Storage.DBPath)
	require.NoError(t, err)
	defer store.Close()

	mcp, err := mcpserver.New(cfg, log, registry, svc)
	require.NoError(t, err)

	srv := api.New(cfg, log, registry, svc, store, api.WithMCPHandler(mcp.HTTPHandler()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"code":"print('Hello, World!')","language":"python"}`
	resp, err := http.Post(ts.URL+"/api/execute", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result sandbox.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "print('Hello, World!')", result.Stdout)
	assert.NotEmpty(t, result.ExecutionID)

	entries, err := os.ReadDir(cfg.Sandbox.WorkspaceRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed after execution")
	assert.Zero(t, engine.removed, "completed containers remove themselves")

	resp, err = http.Post(ts.URL+"/api/execute", "application/json", strings.NewReader(`{"code":"x","language":"ruby"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestIntegrationDocker runs real containers. It needs a Docker daemon and
// the default runtime images, and is skipped unless CODEIDE_DOCKER_TESTS=1.
func TestIntegrationDocker(t *testing.T) {
	if os.Getenv("CODEIDE_DOCKER_TESTS") != "1" {
		t.Skip("set CODEIDE_DOCKER_TESTS=1 to run against a Docker daemon")
	}

	cfg := testConfig(t)
	cfg.Sandbox.TimeoutMS = 10000
	cfg.Sandbox.PullMissingImages = true
	log := zaptest.NewLogger(t)

	registry, err := language.NewFromConfig(cfg)
	require.NoError(t, err)

	engine, err := sandbox.NewDockerEngineFromConfig(log, cfg)
	require.NoError(t, err)
	defer engine.Close()

	svc := execution.NewFromConfig(log, cfg, registry, sandbox.NewRunnerFromConfig(log, cfg, registry, engine))
	ctx := context.Background()

	t.Run("HelloWorld", func(t *testing.T) {
		result, err := svc.Execute(ctx, execution.Request{Code: "print('Hello, World!')", Language: "python"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "Hello, World!\n", result.Stdout)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("Stdin", func(t *testing.T) {
		code := "#include <iostream>\nint main(){int a,b;std::cin>>a>>b;std::cout<<a+b;}"
		result, err := svc.Execute(ctx, execution.Request{Code: code, Language: "cpp", Stdin: "3 4"})
		require.NoError(t, err)
		assert.Equal(t, "7", result.Stdout)
	})

	t.Run("ProgramFailure", func(t *testing.T) {
		result, err := svc.Execute(ctx, execution.Request{Code: "console.error('bad'); process.exit(3)", Language: "nodejs"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, 3, result.ExitCode)
		assert.Equal(t, "bad\n", result.Stderr)
	})

	t.Run("NetworkDisabled", func(t *testing.T) {
		code := "import socket\ntry:\n    socket.create_connection(('1.1.1.1', 53), timeout=2)\n    print('online')\nexcept OSError:\n    print('offline')"
		result, err := svc.Execute(ctx, execution.Request{Code: code, Language: "python"})
		require.NoError(t, err)
		assert.Equal(t, "offline\n", result.Stdout)
	})

	t.Run("Timeout", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sandbox.TimeoutMS = 2000
		svc := execution.NewFromConfig(log, cfg, registry, sandbox.NewRunnerFromConfig(log, cfg, registry, engine))

		start := time.Now()
		result, err := svc.Execute(ctx, execution.Request{Code: "while True: pass", Language: "python"})
		require.NoError(t, err)
		assert.Equal(t, sandbox.ErrMsgTimeout, result.Stderr)
		assert.Equal(t, sandbox.InfrastructureExitCode, result.ExitCode)
		assert.Less(t, time.Since(start), 15*time.Second)
	})
}
