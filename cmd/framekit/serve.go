package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/internal/host"
	"github.com/ajitpratap0/framekit/pkg/metrics"
)

func newServeCommand(c *cli) *cobra.Command {
	var addr string
	var turrets int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the turret simulation and expose Prometheus metrics",
		Long: `Run the turret simulation at the configured frame rate until
interrupted or until runtime.max_frames frames have run. Pool and state
machine metrics are served on /metrics when observability.enable_metrics is
set or --addr is given.

Example:
  framekit serve --addr :9090 --turrets 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr := ""
			switch {
			case cmd.Flags().Changed("addr"):
				metricsAddr = addr
			case c.cfg.Observability.EnableMetrics:
				metricsAddr = c.cfg.Observability.MetricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := c.demoRuntime(ctx, turrets)
			if err != nil {
				return err
			}
			return serve(ctx, rt, metricsAddr, c.log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Metrics listen address, enables /metrics (default observability.metrics_addr when observability.enable_metrics is set)")
	cmd.Flags().IntVar(&turrets, "turrets", 3, "Number of turret state machines")
	return cmd
}

// metricsHandler serves the runtime collector together with the default
// registry, which holds the frame metrics.
func metricsHandler(rt *host.Runtime) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewRuntimeCollector(rt, rt))
	return promhttp.HandlerFor(
		prometheus.Gatherers{reg, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// serve runs rt until ctx ends or the frame limit is reached. An empty addr
// runs the loop without a metrics endpoint.
func serve(ctx context.Context, rt *host.Runtime, addr string, log *zap.Logger) error {
	if addr == "" {
		log.Info("metrics endpoint disabled")
		runErr := rt.Run(ctx)
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := rt.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler(rt))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- rt.Run(loopCtx)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = err
		cancel()
		<-loopErr
	case err := <-loopErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown failed", zap.Error(err))
	}
	if err := rt.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
