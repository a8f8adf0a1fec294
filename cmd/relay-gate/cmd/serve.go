package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Relay-Gate/Relaygate/internal/adapter/inbound/sse"
	"github.com/Relay-Gate/Relaygate/internal/adapter/inbound/stdio"
	"github.com/Relay-Gate/Relaygate/internal/adapter/outbound/memory"
	"github.com/Relay-Gate/Relaygate/internal/adapter/outbound/sqlitestore"
	"github.com/Relay-Gate/Relaygate/internal/config"
	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transport server",
	Long: `Start the Relay Gate transport server.

The server can operate in two modes:

1. SSE mode (default): hosts the event-stream endpoint pair over HTTP.
   Peers establish a stream with GET and post inbound messages to the
   advertised endpoint.

2. Stdio mode: carries one duplex channel over stdin/stdout.
   Set transport.mode: stdio in your config file.

Examples:
  # Start with config file settings
  relay-gate serve

  # Start with a specific config file
  relay-gate --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration without validation, so CLI flags can override
	// first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	// Log to stderr: stdout is reserved for the message stream in stdio
	// mode.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("relay-gate stopped")
	return nil
}

// run wires the configured transport and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Transport.Mode == "stdio" {
		return runStdio(ctx, logger)
	}

	opts := []sse.Option{
		sse.WithAddr(cfg.Server.HTTPAddr),
		sse.WithPaths(cfg.Server.SSEPath, cfg.Server.PostPath),
		sse.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		sse.WithLogger(logger),
		sse.WithConnectionHandler(logInbound(logger)),
	}

	if cfg.Transport.SSEVariant == "stream" {
		opts = append(opts, sse.WithVariant(sse.VariantStream))
	}

	if cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" {
		opts = append(opts, sse.WithTLS(cfg.Server.CertFile, cfg.Server.KeyFile))
	}

	if cfg.Auth.Enabled {
		store, cleanup, err := buildClientStore(cfg, logger)
		if err != nil {
			return err
		}
		if cleanup != nil {
			defer cleanup()
		}
		opts = append(opts, sse.WithClientGate(auth.NewGate(store, logger)))
	}

	logger.Info("relay-gate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"sse_path", cfg.Server.SSEPath,
		"post_path", cfg.Server.PostPath,
		"variant", cfg.Transport.SSEVariant,
		"auth", cfg.Auth.Enabled,
	)

	server := sse.NewServer(opts...)
	return server.Start(ctx)
}

// runStdio carries a single duplex channel over stdin/stdout.
func runStdio(ctx context.Context, logger *slog.Logger) error {
	t := stdio.NewTransport(os.Stdin, os.Stdout, logger)
	logInbound(logger)(t)

	logger.Info("relay-gate starting", "version", Version, "transport", "stdio")

	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stdio transport: %w", err)
	}
	<-t.Done()
	return nil
}

// logInbound returns a connection handler that records transport traffic.
// Hosting applications replace this with their own dispatcher; the serve
// command is the bare carrier.
func logInbound(logger *slog.Logger) func(transport.Transport) {
	return func(t transport.Transport) {
		t.OnMessage(func(env *wire.Envelope) {
			logger.Debug("message received",
				"session", session.Digest(t.SessionID()),
				"kind", env.Kind.String(),
				"method", env.Method(),
			)
		})
		t.OnError(func(err error) {
			logger.Warn("transport error",
				"session", session.Digest(t.SessionID()),
				"error", err,
			)
		})
	}
}

// buildClientStore creates the configured registered-client store. The
// returned cleanup func is non-nil when the store holds resources.
func buildClientStore(cfg *config.Config, logger *slog.Logger) (auth.ClientStore, func(), error) {
	switch cfg.Auth.Store {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Auth.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open client database: %w", err)
		}
		logger.Info("client store: sqlite", "path", cfg.Auth.SQLitePath)
		return store, func() { _ = store.Close() }, nil

	default:
		store := memory.NewClientStore()
		if err := store.LoadSeedFile(cfg.Auth.ClientsFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load clients file: %w", err)
		}
		logger.Info("client store: memory", "file", cfg.Auth.ClientsFile)
		return store, nil, nil
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
