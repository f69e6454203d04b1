// Command ratslap starts the slap card game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags (or their environment variables) control host/port, preset directory,
// logging, idle-session expiry and optional ngrok tunneling for easy external
// access during development. A .env file in the working directory is loaded first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/ratslap/api"
	"github.com/wricardo/ratslap/game/config"
	"github.com/wricardo/ratslap/game/service"
	"github.com/wricardo/ratslap/game/session"
	"github.com/wricardo/ratslap/transport/mcp"
	"github.com/wricardo/ratslap/transport/room"
	"github.com/wricardo/ratslap/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Rat Slap Server"
)

// appConfig is the resolved process configuration
type appConfig struct {
	Host         string
	Port         int
	ConfigDir    string
	Debug        bool
	LogFormat    string
	NgrokEnabled bool
	NgrokAuth    string
	NgrokDomain  string
	MaxIdle      time.Duration
}

func (c appConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type runFunc func(ctx context.Context, cfg appConfig) error

// newCommand builds the CLI. serve and stdio run the two modes.
func newCommand(serve, stdio runFunc) *cli.Command {
	withConfig := func(run runFunc) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, configFromCommand(cmd))
		}
	}

	return &cli.Command{
		Name:    "ratslap",
		Usage:   "Multiplayer slap card game server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing rule-set presets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format: text or json", Sources: cli.EnvVars("LOG_FORMAT")},
			&cli.DurationFlag{Name: "session-max-idle", Value: 2 * time.Hour, Usage: "Close sessions idle for longer than this", Sources: cli.EnvVars("SESSION_MAX_IDLE")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  withConfig(serve),
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  withConfig(stdio),
			},
		},
		Action: withConfig(serve),
	}
}

func configFromCommand(cmd *cli.Command) appConfig {
	return appConfig{
		Host:         cmd.String("host"),
		Port:         int(cmd.Int("port")),
		ConfigDir:    cmd.String("config-dir"),
		Debug:        cmd.Bool("debug"),
		LogFormat:    cmd.String("log-format"),
		NgrokEnabled: cmd.Bool("ngrok"),
		NgrokAuth:    cmd.String("ngrok-auth"),
		NgrokDomain:  cmd.String("ngrok-domain"),
		MaxIdle:      cmd.Duration("session-max-idle"),
	}
}

// newLogger builds the process logger. It writes to stderr so stdio MCP keeps stdout clean.
func newLogger(cfg appConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// main loads .env, parses flags and runs the selected mode until a signal arrives.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warn("Error loading .env file")
		}
	} else {
		logrus.Info("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(runHTTPServer, runStdioMCP).Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("Server exited")
	}
}

// app holds the wired services of one process
type app struct {
	service *service.Service
	hub     *websocket.Hub
	api     *api.Server
	logger  logrus.FieldLogger
	maxIdle time.Duration
}

// initializeServices wires the connection router, session directory, preset store,
// game service, websocket hub and REST server.
func initializeServices(cfg appConfig, logger logrus.FieldLogger) (*app, error) {
	configManager, err := config.NewManager(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	router := room.NewRouter(logger)
	sessionManager := session.NewManager(router, logger)
	gameService := service.NewGameService(sessionManager, configManager, router, service.Options{Logger: logger})
	hub := websocket.NewHub(gameService, logger)

	return &app{
		service: gameService,
		hub:     hub,
		api:     api.NewServer(gameService, hub, logger),
		logger:  logger,
		maxIdle: cfg.MaxIdle,
	}, nil
}

// start runs the hub and the idle-session janitor until ctx is cancelled
func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	if a.maxIdle > 0 {
		go a.service.RunJanitor(ctx, janitorInterval(a.maxIdle), a.maxIdle)
	}
}

// janitorInterval sweeps a few times per idle window, at most every 15 minutes
func janitorInterval(maxIdle time.Duration) time.Duration {
	interval := maxIdle / 4
	switch {
	case interval < time.Second:
		return time.Second
	case interval > 15*time.Minute:
		return 15 * time.Minute
	}
	return interval
}

// buildHandler mounts the API at the root and the MCP JSON-RPC proxy at /mcp
func buildHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer serves REST, WebSocket and /mcp until ctx is cancelled. If ngrok
// is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg appConfig) error {
	logger := newLogger(cfg)
	logger.WithField("version", Version).Infof("Starting %s (mode: server)", AppName)

	a, err := initializeServices(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.start(ctx)

	addr := cfg.addr()
	handler := buildHandler(a.api, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("HTTP server listening on %s", addr)
		logger.Infof("REST API: http://%s/api", addr)
		logger.Infof("WebSocket: ws://%s/ws?name=<display name>", addr)
		logger.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, handler, logger)
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info("Server stopped")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, cfg appConfig, handler http.Handler, logger logrus.FieldLogger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logger.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Infof("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.WithError(err).Error("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	logger.Infof("🚀 Ngrok tunnel established: %s", ngrokURL)
	logger.Infof("  REST API (ngrok): %s/api", ngrokURL)
	logger.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.WithError(err).Warn("Ngrok server error")
	}
	logger.Info("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an API already listening on the
// configured address; otherwise it starts an internal HTTP API on a random loopback
// port and targets that.
func runStdioMCP(ctx context.Context, cfg appConfig) error {
	logger := newLogger(cfg)
	logger.WithField("version", Version).Infof("Starting %s (mode: stdio-mcp)", AppName)

	externalURL := "http://" + cfg.addr()
	baseURL := externalURL
	logger.Infof("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logger.Infof("External API server found at %s, using it for MCP", externalURL)
	} else {
		logger.Info("No external API server found, starting internal HTTP server")

		a, err := initializeServices(cfg, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		a.start(ctx)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		logger.Infof("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{Handler: a.api}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.WithField("api", baseURL).Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
