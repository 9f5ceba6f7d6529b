// Command stitch-turtle serves the turtle-graphics stitch renderer.
//
// It supports these commands:
//  1. "serve" (default) runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "render" runs a script file once and writes its combined, front and back SVG files
//  4. "version" prints the version
//
// Flags control host/port, preset directory, settings file, debug logging,
// and optional ngrok tunneling for easy external access during development.
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
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/stitch-turtle/api"
	"github.com/wricardo/stitch-turtle/transport/mcp"
	"github.com/wricardo/stitch-turtle/transport/websocket"
	"github.com/wricardo/stitch-turtle/turtle/config"
	"github.com/wricardo/stitch-turtle/turtle/engine"
	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
	"github.com/wricardo/stitch-turtle/turtle/session"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Stitch Turtle Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("error loading .env file", "error", err)
	}

	cmd := newApp()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("stitch-turtle failed", "error", err)
	}
}

// newApp builds the command tree. Root flags are inherited by every command.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "stitch-turtle",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "preset-dir",
				Value:   "configs",
				Usage:   "Directory containing preset scripts",
				Sources: cli.EnvVars("PRESET_DIR", "CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "YAML settings file (optional)",
				Sources: cli.EnvVars("TURTLE_SETTINGS"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel (serve only)",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  mcpAction,
			},
			{
				Name:      "render",
				Usage:     "Render a script file into combined, front and back SVG files",
				ArgsUsage: "<script.js>",
				Action:    renderAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Value: ".",
						Usage: "Output directory",
					},
					&cli.StringFlag{
						Name:  "seed",
						Usage: "Seed for Math.random",
					},
					&cli.BoolFlag{
						Name:  "source",
						Usage: "Embed the script as a comment in each file",
					},
				},
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

// newLogger writes to stderr so stdout stays free for the MCP stdio protocol
func newLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "turtle",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	}
	log.SetDefault(logger)
	return logger
}

// app holds the wired services shared by the serve and mcp commands
type app struct {
	settings    config.Settings
	render      service.RenderService
	sessions    *session.Manager
	persistence session.SessionPersistence
	log         *log.Logger
}

// Close flushes sessions and releases the persistence backend
func (a *app) Close() error {
	err := a.sessions.SaveAllSessions()
	if closer, ok := a.persistence.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}

// openPersistence selects the session store named in settings
func openPersistence(settings config.Settings) (session.SessionPersistence, error) {
	switch settings.Persistence {
	case config.BackendSQLite:
		return session.OpenSQLite(settings.DBPath)
	case config.BackendFile, "":
		return session.NewFilePersistence(settings.SessionsDir)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", settings.Persistence)
	}
}

// initializeServices wires session/preset managers and the render service.
func initializeServices(settings config.Settings, presetDir string, logger *log.Logger) (*app, error) {
	presets, err := config.NewManager(presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}

	persistence, err := openPersistence(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence, settings.RunnerOptions(logger))

	// Load persisted sessions on startup
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "error", err)
	}
	service.RecordSessionCount(sessionManager.Count())

	return &app{
		settings:    settings,
		render:      service.NewRenderService(sessionManager, presets, settings.ServiceOptions(logger)),
		sessions:    sessionManager,
		persistence: persistence,
		log:         logger,
	}, nil
}

// setup loads settings and services from the command's flags
func setup(cmd *cli.Command) (*app, error) {
	logger := newLogger(cmd.Bool("debug"))

	settings, err := config.LoadSettings(cmd.String("settings"))
	if err != nil {
		return nil, err
	}

	return initializeServices(settings, cmd.String("preset-dir"), logger)
}

// newHTTPHandler combines the API server with the /mcp proxy endpoint
func (a *app) newHTTPHandler(hub *websocket.Hub, baseURL string) http.Handler {
	apiServer := api.NewServer(a.render, hub,
		api.WithRateLimit(a.settings.RateLimit, a.settings.RateBurst),
		api.WithLogger(a.log),
	)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.Handle("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mux
}

// mcpHandler answers single JSON-RPC MCP messages over HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// serveAction starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn("failed to flush sessions", "error", err)
		}
	}()

	hub := websocket.NewHub(a.render, a.log)
	go hub.Run()

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), int(cmd.Int("port")))
	handler := a.newHTTPHandler(hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Runs may take up to the run timeout
		WriteTimeout: a.settings.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sessionCleanupRoutine(ctx, time.Hour)
	go a.persistenceSyncRoutine(ctx, 5*time.Second)

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		a.log.Info("HTTP server listening", "addr", addr)
		a.log.Info("endpoints",
			"api", "http://"+addr+"/api",
			"ws", "ws://"+addr+"/ws?session=<id>",
			"mcp", "http://"+addr+"/mcp",
			"metrics", "http://"+addr+"/metrics")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	a.log.Info("server stopped")
	return nil
}

// serveNgrok exposes handler through an ngrok tunnel until ctx ends
func (a *app) serveNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		a.log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		a.log.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.log.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	a.log.Info("ngrok tunnel established", "url", ngrokURL, "mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.log.Error("ngrok server error", "error", err)
	}
	a.log.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the session TTL.
func (a *app) sessionCleanupRoutine(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.sessions.CleanupExpiredSessions(a.settings.SessionTTL)
			if removed > 0 {
				a.log.Info("cleaned up expired sessions", "removed", removed)
			}
			service.RecordSessionCount(a.sessions.Count())
		}
	}
}

// persistenceSyncRoutine removes sessions from memory once their stored
// record has been deleted outside the server.
func (a *app) persistenceSyncRoutine(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := a.pruneOrphans(); pruned > 0 {
				a.log.Info("persistence sync pruned orphaned sessions", "pruned", pruned)
				service.RecordSessionCount(a.sessions.Count())
			}
		}
	}
}

func (a *app) pruneOrphans() int {
	pruned := 0
	for _, sess := range a.sessions.List() {
		if a.persistence.Exists(sess.ID()) {
			continue
		}
		if err := a.sessions.DeleteFromMemory(sess.ID()); err == nil {
			pruned++
			a.log.Debug("pruned session from memory", "session", sess.ID())
		}
	}
	return pruned
}

// mcpAction runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:<port>; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	externalURL := fmt.Sprintf("http://localhost:%d", int(cmd.Int("port")))
	baseURL := externalURL

	if !apiAvailable(externalURL) {
		a.log.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		hub := websocket.NewHub(a.render, a.log)
		go hub.Run()

		httpServer := &http.Server{Handler: a.newHTTPHandler(hub, baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		go a.sessionCleanupRoutine(ctx, time.Hour)
	} else {
		a.log.Info("external API server found, using it for MCP", "url", externalURL)
	}

	a.log.Info("MCP stdio server ready", "api", baseURL)
	return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
}

// apiAvailable reports whether a stitch-turtle API answers at baseURL
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// renderAction runs a script file once and writes one SVG per variant
func renderAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("debug"))

	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("render requires a script file (use - for stdin)")
	}

	settings, err := config.LoadSettings(cmd.String("settings"))
	if err != nil {
		return err
	}

	opts := settings.RunnerOptions(logger)
	opts.Seed = cmd.String("seed")

	files, err := renderFile(ctx, path, cmd.String("out"), cmd.Bool("source"), opts)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

// renderFile executes the script at path ("-" reads stdin) and writes
// <name>-combined.svg, <name>-front.svg and <name>-back.svg into outDir.
func renderFile(ctx context.Context, path, outDir string, embedSource bool, opts script.Options) ([]string, error) {
	var code []byte
	var err error
	name := "turtle"
	if path == "-" {
		code, err = io.ReadAll(os.Stdin)
	} else {
		code, err = os.ReadFile(path)
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	result, err := script.Execute(ctx, string(code), opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := make([]string, 0, len(script.Variants))
	for _, variant := range script.Variants {
		doc := result.SVG[variant]
		if embedSource {
			doc = engine.EmbedSource(doc, result.Code)
		}

		file := filepath.Join(outDir, fmt.Sprintf("%s-%s.svg", name, variant))
		if err := os.WriteFile(file, []byte(doc), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}
