package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/cuemby/whisker/pkg/api"
	"github.com/cuemby/whisker/pkg/config"
	"github.com/cuemby/whisker/pkg/events"
	"github.com/cuemby/whisker/pkg/generator"
	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
	"github.com/cuemby/whisker/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the whisker server",
	Long: `Run the HTTP API (and the gRPC API when --grpc-addr is set).

Settings come from defaults, the optional --config file, a .env file and
WHISKER_* environment variables, in that order. Flags override all of them.
Changes to the config file are applied to the log level and the log
generator without a restart.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Path to a YAML config file")
	f.String("http-addr", "", "Address for the HTTP API (default :8000)")
	f.String("grpc-addr", "", "Address for the gRPC API (disabled when empty)")
	f.String("data-dir", "", "Directory for the move journal (disabled when empty)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.Bool("log-json", false, "Output logs in JSON format")
	f.Bool("no-generator", false, "Disable the synthetic log generator")
}

// applyFlags overrides cfg with every flag set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("http-addr") {
		cfg.HTTPAddr, _ = f.GetString("http-addr")
	}
	if f.Changed("grpc-addr") {
		cfg.GRPCAddr, _ = f.GetString("grpc-addr")
	}
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-json") {
		cfg.Log.JSON, _ = f.GetBool("log-json")
	}
	if noGen, _ := f.GetBool("no-generator"); noGen {
		cfg.Generator.Enabled = false
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The broker exists before logging so the capture writer can feed it
	broker := events.NewBroker(events.Config{
		Capacity:         cfg.Buffer.Capacity,
		SubscriberBuffer: cfg.Buffer.SubscriberBuffer,
		ReplayCount:      cfg.Buffer.ReplayCount,
		Heartbeat:        cfg.Buffer.Heartbeat,
	})

	capture := events.NewCaptureWriter(broker)
	capture.Start()
	defer capture.Stop()

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stdout,
		Capture:    capture,
	})
	logger := log.WithComponent("server")

	metrics.SetVersion(Version)
	metrics.RegisterComponent(metrics.ComponentBroker, true, "ready")
	metrics.SetFeedSource(broker)

	var journal storage.Journal
	if cfg.DataDir != "" {
		bolt, err := storage.NewBoltJournal(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open move journal: %w", err)
		}
		defer func() {
			if err := bolt.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close move journal")
			}
		}()
		journal = bolt
		metrics.RegisterComponent(metrics.ComponentJournal, true, "open")
	}

	collector := metrics.NewCollector(broker, 0)
	collector.Start()
	defer collector.Stop()

	gen := generator.New(broker, cfg.Generator.Interval, nil)
	if cfg.Generator.Enabled {
		gen.Start()
	}

	errCh := make(chan error, 2)

	httpServer := api.NewServer(api.Options{
		Broker:         broker,
		Journal:        journal,
		Version:        Version,
		AllowedOrigin:  cfg.CORS.AllowedOrigin,
		HistoryDefault: cfg.Buffer.HistoryDefault,
		RateLimit: api.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RPS,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	go func() {
		if err := httpServer.Start(cfg.HTTPAddr); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var grpcServer *api.GRPCServer
	if cfg.GRPCAddr != "" {
		metrics.SetCriticalComponents(metrics.ComponentBroker, metrics.ComponentHTTP, metrics.ComponentGRPC)
		grpcServer = api.NewGRPCServer(broker, cfg.Buffer.HistoryDefault)
		go func() {
			if err := grpcServer.Start(cfg.GRPCAddr); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		watcher := config.NewWatcher(configPath, func(next *config.Config) {
			applyFlags(cmd, next)
			log.SetLevel(log.Level(next.Log.Level))
			if err := gen.Reconfigure(ctx, next.Generator.Enabled, next.Generator.Interval); err != nil {
				logger.Error().Err(err).Msg("Failed to reconfigure log generator")
			}
			logger.Info().Str("log_level", next.Log.Level).Bool("generator", next.Generator.Enabled).Msg("Applied config change")
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug().Err(err).Msg("sd_notify failed")
	}
	logger.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("grpc_addr", cfg.GRPCAddr).
		Str("version", Version).
		Msg("Whisker is running")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Server failed")
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := gen.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Log generator did not stop in time")
	}
	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}
	metrics.UpdateComponent(metrics.ComponentBroker, false, "stopped")

	logger.Info().Msg("Shutdown complete")
	return runErr
}
