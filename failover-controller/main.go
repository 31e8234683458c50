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
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "rds-failover",
		Short: "Cross-region RDS failover controller",
		Long: `rds-failover checks the primary RDS instance and, when it is not available,
promotes the cross-region read replica and notifies operators.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(checkCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(statusCmd(&configPath))
	root.AddCommand(historyCmd(&configPath))
	return root
}

// setup loads the configuration and builds the logger shared by all commands.
func setup(configPath string) (*Config, *zap.Logger, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single failover check and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Controller.Invoke(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run failover checks on an interval and expose metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return serve(ctx, cancel, app)
		},
	}
}

func serve(ctx context.Context, cancel context.CancelFunc, app *App) error {
	logger := app.Logger
	logger.Info("Starting RDS Failover Controller...",
		zap.String("primary_region", app.Config.PrimaryRegion),
		zap.String("secondary_region", app.Config.SecondaryRegion),
		zap.Duration("interval", app.Config.CheckInterval))

	// Start Metrics Server. Binding happens here so a bad address fails the
	// command instead of surfacing later as a clean shutdown.
	ln, err := net.Listen("tcp", app.Config.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	probes := newProbeHandler()
	srv := &http.Server{Handler: probes}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", zap.Error(err))
		}
	}()

	// Handle Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(app.Config.CheckInterval)
	defer ticker.Stop()

	// Initial Run
	logger.Info("Running initial failover check...")
	checkAndMarkReady(ctx, app.Controller, probes)

	for {
		select {
		case <-ticker.C:
			logger.Debug("Running scheduled failover check...")
			checkAndMarkReady(ctx, app.Controller, probes)
		case err := <-errCh:
			logger.Error("Metrics server failed", zap.Error(err))
			return fmt.Errorf("metrics server: %w", err)
		case <-ctx.Done():
			logger.Info("Failover Controller stopped.")
			return nil
		}
	}
}

// checkAndMarkReady runs one invocation. Readiness means the failover
// configuration resolved at least once; config errors are already logged by
// Invoke and the next tick retries.
func checkAndMarkReady(ctx context.Context, fc *FailoverController, probes *probeHandler) {
	if _, err := fc.Invoke(ctx); err != nil {
		return
	}
	probes.MarkReady()
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the snapshot of the last failover check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.StateFile == "" {
				return errors.New("STATE_FILE is not configured")
			}
			snap, err := NewStateStore(cfg.StateFile).Load()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent failover checks from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not configured")
			}
			ctx := cmd.Context()
			store, err := openHistoryStore(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
