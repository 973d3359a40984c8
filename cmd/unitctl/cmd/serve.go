package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/config"
	"github.com/GoCodeAlone/unitrouter/health"
	"github.com/GoCodeAlone/unitrouter/internal/control"
	"github.com/GoCodeAlone/unitrouter/internal/platform/metrics"
	"github.com/GoCodeAlone/unitrouter/internal/reload"
	"github.com/GoCodeAlone/unitrouter/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand runs the router with its control API.
func NewServeCommand(flags *globalFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the router and serve the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, flags, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the unit manifest when the config file changes")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, flags *globalFlags, watch bool) error {
	loader, cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	tp, err := tracing.New(tracing.Config{
		Enabled:        cfg.Tracing,
		ServiceName:    cfg.Name,
		ServiceVersion: Version,
		Output:         cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	history, err := unitrouter.NewMemoryHistory(cfg.InitialURL)
	if err != nil {
		return err
	}
	history.URLRerouteOnly = cfg.URLRerouteOnly

	router, err := unitrouter.New(history,
		unitrouter.WithLogger(logger),
		unitrouter.WithTimeouts(cfg.Timeouts),
		unitrouter.WithRetryBackoff(cfg.RetryBackoff),
		unitrouter.WithTracerProvider(tp),
		unitrouter.WithBaseContext(ctx),
	)
	if err != nil {
		return err
	}
	defer router.Close()

	collector := metrics.NewCollector()
	if err := router.RegisterObserver(collector.Observer(router), metrics.EventTypes()...); err != nil {
		return err
	}

	manager := reload.NewManager(router, demoLoader(logger), logger, nil)
	if err := manager.RegisterAll(cfg); err != nil {
		return err
	}

	router.Listen()
	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	if cfg.RerouteSchedule != "" {
		sched, err := unitrouter.NewRerouteScheduler(router, cfg.RerouteSchedule)
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = sched.Stop(sctx)
		}()
	}

	if watch {
		w := config.NewWatcher(loader, logger)
		err := w.Start(ctx, func(ctx context.Context, next *config.Config) {
			if _, err := manager.Apply(ctx, next); err != nil {
				logger.Error("Manifest reload incomplete", "error", err)
			}
		})
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	agg := health.NewAggregator(health.AggregatorConfig{})
	_ = agg.RegisterCheck(health.NewRouterChecker(router))
	_ = agg.RegisterCheck(health.NewUnitsChecker(router))
	agg.OnStatusChange(func(_ context.Context, prev, cur *health.AggregatedStatus) {
		logger.Info("Health changed", "status", cur.OverallStatus)
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           control.NewServer(router, logger, control.WithHealth(agg), control.WithMetrics(collector.Handler())).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Control API listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down")
	return srv.Shutdown(sctx)
}
