package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/transport/mcp"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func presetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data, err := json.Marshal(engine.Preset{Name: "Classic", Settings: engine.DefaultSettings()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classic.json"), data, 0644))
	return dir
}

func runCommand(t *testing.T, args ...string) (appConfig, string) {
	t.Helper()
	var got appConfig
	var mode string
	record := func(name string) runFunc {
		return func(ctx context.Context, cfg appConfig) error {
			got = cfg
			mode = name
			return nil
		}
	}

	cmd := newCommand(record("server"), record("stdio-mcp"))
	require.NoError(t, cmd.Run(context.Background(), append([]string{"ratslap"}, args...)))
	return got, mode
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Rat Slap Server", AppName)
}

func TestCommandDefaults(t *testing.T) {
	cfg, mode := runCommand(t)

	assert.Equal(t, "server", mode)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "configs", cfg.ConfigDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 2*time.Hour, cfg.MaxIdle)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.NgrokEnabled)
	assert.Equal(t, "localhost:8080", cfg.addr())
}

func TestCommandModes(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"server"}, "server"},
		{[]string{"http"}, "server"},
		{[]string{"stdio-mcp"}, "stdio-mcp"},
		{[]string{"mcp"}, "stdio-mcp"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			_, mode := runCommand(t, tt.args...)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestCommandFlagsAndEnv(t *testing.T) {
	t.Setenv("SESSION_MAX_IDLE", "30m")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("NGROK_AUTHTOKEN", "secret")

	cfg, mode := runCommand(t, "--port", "9090", "--debug", "stdio-mcp")

	assert.Equal(t, "stdio-mcp", mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Minute, cfg.MaxIdle)
	assert.Equal(t, "secret", cfg.NgrokAuth)
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(appConfig{Debug: true, LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = newLogger(appConfig{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, 15*time.Minute, janitorInterval(2*time.Hour))
	assert.Equal(t, 5*time.Minute, janitorInterval(20*time.Minute))
	assert.Equal(t, time.Second, janitorInterval(time.Second))
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	_, err := initializeServices(appConfig{ConfigDir: "/non/existent/path"}, testLogger())
	assert.Error(t, err)
}

func TestServedHandler(t *testing.T) {
	a, err := initializeServices(appConfig{ConfigDir: presetDir(t), MaxIdle: time.Hour}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.start(ctx)

	// The MCP proxy needs the server's own address, which is only known after it starts.
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.Handle("/", buildHandler(a.api, mcp.NewClient(srv.URL)))

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("configs", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/configs")
		require.NoError(t, err)
		defer resp.Body.Close()

		var configs []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&configs))
		require.Len(t, configs, 1)
		assert.Equal(t, "classic", configs[0]["config_id"])
	})

	t.Run("mcp rejects GET", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/mcp")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("mcp initialize", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`
		resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), "Rat Slap")
	})
}
