package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/brawl-relay/internal/config"
	"github.com/DoyleJ11/brawl-relay/internal/httpapi"
	"github.com/DoyleJ11/brawl-relay/internal/hub"
	"github.com/DoyleJ11/brawl-relay/internal/logging"
	"github.com/DoyleJ11/brawl-relay/internal/metrics"
	"github.com/DoyleJ11/brawl-relay/internal/ws"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "brawl-relay",
		Short:         "Two-player realtime relay for the brawler client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := resolveConfig(cmd, envFile, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, loaded)
		},
	}

	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	f.IntVar(&cfg.Port, "port", cfg.Port, "listen port (PORT)")
	f.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory holding the game client (RELAY_STATIC_DIR)")
	f.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "empty room sweep period, 0 disables (RELAY_SWEEP_INTERVAL)")
	f.IntVar(&cfg.OutboxSize, "outbox-size", cfg.OutboxSize, "queued frames per connection before it is dropped (RELAY_OUTBOX_SIZE)")
	f.IntVar(&cfg.InboxSize, "inbox-size", cfg.InboxSize, "hub inbox capacity (RELAY_INBOX_SIZE)")
	f.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-frame write deadline (RELAY_WRITE_TIMEOUT)")
	f.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "drop connections silent this long, 0 disables (RELAY_IDLE_TIMEOUT)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (RELAY_LOG_LEVEL)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console (RELAY_LOG_FORMAT)")
	return cmd
}

// resolveConfig layers env file, environment and changed flags, then
// validates the result once.
func resolveConfig(cmd *cobra.Command, envFile string, flags config.Config) (config.Config, error) {
	loaded, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(cmd, &loaded, flags)
	if err := loaded.Validate(); err != nil {
		return config.Config{}, err
	}
	return loaded, nil
}

// applyFlags copies every flag the user actually set over the environment.
func applyFlags(cmd *cobra.Command, dst *config.Config, flags config.Config) {
	set := cmd.Flags().Changed
	if set("port") {
		dst.Port = flags.Port
	}
	if set("static-dir") {
		dst.StaticDir = flags.StaticDir
	}
	if set("sweep-interval") {
		dst.SweepInterval = flags.SweepInterval
	}
	if set("outbox-size") {
		dst.OutboxSize = flags.OutboxSize
	}
	if set("inbox-size") {
		dst.InboxSize = flags.InboxSize
	}
	if set("write-timeout") {
		dst.WriteTimeout = flags.WriteTimeout
	}
	if set("idle-timeout") {
		dst.IdleTimeout = flags.IdleTimeout
	}
	if set("log-level") {
		dst.LogLevel = flags.LogLevel
	}
	if set("log-format") {
		dst.LogFormat = flags.LogFormat
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() {
		// stderr/stdout sync fails with EINVAL on some platforms
		_ = log.Sync()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := hub.NewHub(ctx, log.Named("hub"), metrics.New(reg),
		hub.WithSweepInterval(cfg.SweepInterval),
		hub.WithInboxSize(cfg.InboxSize),
	)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:       h,
			Log:       log.Named("http"),
			Gatherer:  reg,
			StaticDir: cfg.StaticDir,
			WS: ws.Options{
				OutboxSize:   cfg.OutboxSize,
				WriteTimeout: cfg.WriteTimeout,
				IdleTimeout:  cfg.IdleTimeout,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("static_dir", cfg.StaticDir))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// Closing the hub closes every outbox, so open sockets finish on their own.
		h.Close()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return multierr.Append(g.Wait(), closeErr(srv))
}

// closeErr force-closes anything Shutdown left behind. A server that already
// shut down cleanly reports nothing.
func closeErr(srv *http.Server) error {
	if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
