package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/treefs/treefs/internal/logger"
	"github.com/treefs/treefs/pkg/config"
	"github.com/treefs/treefs/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TreeFS metadata service",
	Long: `Run the TreeFS metadata service in the foreground.

The service loads its configuration, opens the store backend, rebuilds the
filesystem registry from the persisted records, materializes any filesystems
declared in the configuration and then waits for a termination signal.

Examples:
  # Run with the default config location
  treefs serve

  # Run with a custom config file
  treefs serve --config /etc/treefs/config.yaml

  # Run with environment variable overrides
  TREEFS_LOGGING_LEVEL=DEBUG treefs serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.InitRegistry()

	env, err := openEnvironment(ctx, metrics.NewRegistryMetrics())
	if err != nil {
		return err
	}
	defer env.close()

	if err := config.MaterializeFilesystems(ctx, env.reg, env.cfg.Filesystems); err != nil {
		return err
	}

	var metricsServer *http.Server
	if env.cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(env.cfg.Metrics.ListenAddress)
	}

	logger.Info("treefs %s serving %d filesystem(s)", Version, env.reg.Count())

	// Block until SIGINT or SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal %v, shutting down", sig)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down metrics server: %v", err)
		}
	}

	return nil
}

// startMetricsServer exposes the Prometheus registry over HTTP.
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed: %v", err)
		}
	}()

	return srv
}
