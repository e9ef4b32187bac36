// Command star-royale starts the Star Royale match server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, the
//     game WebSocket and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API
//     if none is available
//
// Flags control host/port, the config directory and match rules, the wallet
// API used for payouts, debug logging and optional ngrok tunneling for easy
// external access during development. Every flag can also be set from the
// environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/star-royale/api"
	"github.com/wricardo/star-royale/game/config"
	"github.com/wricardo/star-royale/game/engine"
	"github.com/wricardo/star-royale/game/reward"
	"github.com/wricardo/star-royale/game/service"
	"github.com/wricardo/star-royale/game/session"
	"github.com/wricardo/star-royale/transport/mcp"
	"github.com/wricardo/star-royale/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	ngrokLog "golang.ngrok.com/ngrok/log"
	"golang.org/x/sync/errgroup"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Star Royale Server"
)

const (
	defaultMatchConfig = "classic"
	shutdownTimeout    = 10 * time.Second
)

// options is everything main needs, resolved from flags and environment.
type options struct {
	host              string
	port              int
	configDir         string
	matchConfig       string
	royaleAPIKey      string
	royaleBaseURL     string
	requirePermission bool
	identityHeader    string
	staticDir         string
	debug             bool
	ngrok             bool
	ngrokAuth         string
	ngrokDomain       string
	seed              int64
}

func (o options) addr() string {
	return net.JoinHostPort(o.host, fmt.Sprint(o.port))
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log15.Root().Crit("server failed", "err", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "star-royale",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing match configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "match-config", Value: defaultMatchConfig, Usage: "Match configuration to play", Sources: cli.EnvVars("MATCH_CONFIG")},
			&cli.StringFlag{Name: "royale-api-key", Usage: "Wallet API key; payouts are only logged when empty", Sources: cli.EnvVars("ROYALE_API_KEY")},
			&cli.StringFlag{Name: "royale-base-url", Value: reward.DefaultBaseURL, Usage: "Wallet API root", Sources: cli.EnvVars("ROYALE_BASE_URL")},
			&cli.BoolFlag{Name: "require-permission", Usage: "Refuse players who have not allowed payouts", Sources: cli.EnvVars("REQUIRE_PAYOUT_PERMISSION")},
			&cli.StringFlag{Name: "identity-header", Value: api.DefaultIdentityHeader, Usage: "Request header carrying the authenticated user ID", Sources: cli.EnvVars("IDENTITY_HEADER")},
			&cli.StringFlag{Name: "static-dir", Usage: "Serve the game client from this directory", Sources: cli.EnvVars("STATIC_DIR")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
			&cli.Int64Flag{Name: "seed", Usage: "Random seed for spawns and teams (0 = time based)", Sources: cli.EnvVars("MATCH_SEED")},
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioCommand,
			},
		},
		Action: runServerCommand,
	}
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		host:              cmd.String("host"),
		port:              int(cmd.Int("port")),
		configDir:         cmd.String("config-dir"),
		matchConfig:       cmd.String("match-config"),
		royaleAPIKey:      cmd.String("royale-api-key"),
		royaleBaseURL:     cmd.String("royale-base-url"),
		requirePermission: cmd.Bool("require-permission"),
		identityHeader:    cmd.String("identity-header"),
		staticDir:         cmd.String("static-dir"),
		debug:             cmd.Bool("debug"),
		ngrok:             cmd.Bool("ngrok"),
		ngrokAuth:         cmd.String("ngrok-auth"),
		ngrokDomain:       cmd.String("ngrok-domain"),
		seed:              cmd.Int64("seed"),
	}
}

func setupLogging(debug bool) {
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	setupLogging(opts.debug)

	a, err := newApp(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	return a.serve(ctx)
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	setupLogging(opts.debug)
	return runStdioMCP(ctx, opts)
}

// app holds the wired components of one running match.
type app struct {
	opts       options
	logger     log15.Logger
	registry   *session.Manager
	configs    *config.Manager
	hub        *websocket.Hub
	royale     *reward.RoyaleClient
	dispatcher *reward.Dispatcher
	engine     *engine.Engine
	service    service.MatchService
	api        *api.Server
}

// newApp wires the registry, the hub, the reward pipeline, the engine and the
// HTTP API. Nothing runs until serve is called.
func newApp(opts options) (*app, error) {
	a := &app{
		opts:     opts,
		logger:   log15.New("module", "main"),
		registry: session.NewManager(),
	}

	configs, err := config.NewManager(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	a.configs = configs

	matchConfig, err := a.loadMatchConfig()
	if err != nil {
		return nil, err
	}

	a.hub = websocket.NewHub(
		websocket.WithConnectionIDs(a.registry.NewConnectionID),
		websocket.WithLogger(log15.New("module", "websocket")),
	)

	mode := service.RewardModeDryRun
	var incrementer reward.Incrementer = reward.DryRun{Logger: log15.New("module", "reward", "mode", "dry-run")}
	if opts.royaleAPIKey != "" {
		a.royale = reward.NewRoyaleClient(opts.royaleAPIKey, reward.WithBaseURL(opts.royaleBaseURL))
		incrementer = a.royale
		mode = service.RewardModeLive
	}
	if matchConfig.Prize == 0 {
		mode = service.RewardModeDisabled
	}
	a.dispatcher = reward.NewDispatcher(incrementer)

	engineOpts := []engine.Option{
		engine.WithRewards(a.dispatcher),
		engine.WithLogger(log15.New("module", "engine", "config", matchConfig.Name)),
	}
	if opts.seed != 0 {
		seed := uint64(opts.seed)
		engineOpts = append(engineOpts, engine.WithRand(rand.New(rand.NewPCG(seed, seed>>1))))
	}
	a.engine, err = engine.NewEngine(matchConfig, a.registry, a.hub, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	serviceOpts := []service.Option{
		service.WithConnections(a.registry),
		service.WithRewards(a.dispatcher, mode),
	}
	if a.royale != nil {
		serviceOpts = append(serviceOpts, service.WithWallet(a.royale.AppID(), a.royale.Balance))
	}
	a.service = service.NewMatchService(a.engine, configs, serviceOpts...)

	apiOpts := []api.Option{
		api.WithIdentityResolver(api.HeaderResolver{Header: opts.identityHeader, AllowQuery: true}),
		api.WithLogger(log15.New("module", "api")),
	}
	if opts.staticDir != "" {
		apiOpts = append(apiOpts, api.WithStaticDir(opts.staticDir))
	}
	if opts.requirePermission {
		if a.royale != nil {
			apiOpts = append(apiOpts, api.WithPermissionGate(a.royale))
		} else {
			a.logger.Warn("payout permission check needs a wallet API key; admitting everyone")
		}
	}
	a.api = api.NewServer(a.service, a.hub, a.engine, apiOpts...)

	a.logger.Info("services initialized", "config", matchConfig.Name, "rewards", mode, "winning_score", matchConfig.WinningScore)
	return a, nil
}

// loadMatchConfig picks the configured rules. A missing "classic" file falls
// back to the built-in default; any other missing name is an error.
func (a *app) loadMatchConfig() (*engine.MatchConfig, error) {
	cfg, err := a.configs.LoadConfig(a.opts.matchConfig)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, config.ErrConfigNotFound) && a.opts.matchConfig == defaultMatchConfig {
		return a.configs.GetDefault(), nil
	}
	return nil, fmt.Errorf("failed to load match config %q: %w", a.opts.matchConfig, err)
}

// handler combines the API server with the /mcp endpoint.
func (a *app) handler(baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", a.api)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))
	return mainRouter
}

// mcpHandler answers MCP JSON-RPC messages posted over plain HTTP.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
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

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// serve runs the HTTP server, the hub, the reward worker and the optional
// tunnel until ctx is canceled, then shuts them down and drains the reward
// queue.
func (a *app) serve(ctx context.Context) error {
	addr := a.opts.addr()
	handler := a.handler("http://" + addr)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error {
		err := a.dispatcher.Run(gctx)

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if left := a.dispatcher.Drain(drainCtx); left > 0 {
			a.logger.Error("payouts lost at shutdown", "pending", left)
		}
		return err
	})

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", addr)
		a.logger.Info("endpoints", "api", "http://"+addr+"/api", "ws", "ws://"+addr+"/ws", "mcp", "http://"+addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("HTTP server shutdown error", "err", err)
		}
		return nil
	})

	if a.opts.ngrok {
		g.Go(func() error { return a.runTunnel(gctx, handler) })
	}

	if a.royale != nil {
		go a.logWalletBalance(gctx)
	}

	err := g.Wait()
	a.logger.Info("server stopped")
	return err
}

// runTunnel exposes handler through ngrok. Tunnel failures are logged and
// leave the local server running.
func (a *app) runTunnel(ctx context.Context, handler http.Handler) error {
	if a.opts.ngrokAuth == "" {
		a.logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return nil
	}

	a.logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if a.opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(a.opts.ngrokDomain))
		a.logger.Info("using custom ngrok domain", "domain", a.opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(a.opts.ngrokAuth),
		ngrok.WithLogger(ngrokLogger{log15.New("module", "ngrok")}),
	)
	if err != nil {
		a.logger.Error("failed to start ngrok tunnel", "err", err)
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn("failed to close ngrok tunnel", "err", err)
		}
	}()

	url := tun.URL()
	a.logger.Info("ngrok tunnel established", "url", url, "ws", url+"/ws", "mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		a.logger.Error("ngrok server error", "err", err)
	}
	a.logger.Info("ngrok tunnel closed")
	return nil
}

func (a *app) logWalletBalance(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	balance, err := a.royale.Balance(ctx)
	if err != nil {
		a.logger.Warn("could not read API wallet balance", "app", a.royale.AppID(), "err", err)
		return
	}
	a.logger.Info("API wallet balance", "app", a.royale.AppID(), "balance", balance)
}

// ngrokLogger forwards ngrok's internal logging to log15.
type ngrokLogger struct {
	log15.Logger
}

func (l ngrokLogger) Log(_ context.Context, level ngrokLog.LogLevel, msg string, data map[string]interface{}) {
	ctx := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		ctx = append(ctx, k, v)
	}

	switch {
	case level <= ngrokLog.LogLevelError:
		l.Error(msg, ctx...)
	case level == ngrokLog.LogLevelWarn:
		l.Warn(msg, ctx...)
	case level == ngrokLog.LogLevelInfo:
		l.Info(msg, ctx...)
	default:
		l.Debug(msg, ctx...)
	}
}

// runStdioMCP runs an MCP stdio server. It reuses a server already listening
// on the configured address; otherwise it starts a match with an internal
// HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, opts options) error {
	logger := log15.New("module", "main", "mode", "stdio-mcp")

	externalURL := "http://" + opts.addr()
	logger.Info("checking for external API server", "url", externalURL)

	baseURL := externalURL
	if !apiAvailable(ctx, externalURL) {
		logger.Info("no external API server found, starting internal HTTP server")

		a, err := newApp(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		httpServer := &http.Server{Handler: a.api}
		defer httpServer.Close()

		go a.hub.Run(ctx)
		go a.dispatcher.Run(ctx)
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "err", err)
			}
		}()

		logger.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a Star Royale API answers at baseURL.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
