package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/internal/analytics"
	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
	"github.com/signalsfoundry/ndvi-overlay/internal/observability"
	"github.com/signalsfoundry/ndvi-overlay/internal/web"
)

// Config is the resolved process configuration.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	Analytics      analytics.Config
	Tracing        observability.TracingConfig
}

func main() {
	apiDefaults := analytics.ConfigFromEnv()

	addr := flag.String("addr", ":8080", "HTTP address for the map page and websocket sessions")
	metricsAddr := flag.String("metrics-addr", "", "separate HTTP address for Prometheus /metrics (default: served on -addr)")
	apiURL := flag.String("api-url", apiDefaults.BaseURL, "base URL of the NDVI analytics backend (env NDVI_API_URL)")
	apiTimeout := flag.Duration("api-timeout", apiDefaults.Timeout, "per-request analytics timeout, 0 for none (env NDVI_API_TIMEOUT)")
	flag.Parse()

	log := logging.NewFromEnv()
	cfg := Config{
		ListenAddress:  *addr,
		MetricsAddress: *metricsAddr,
		Analytics:      analytics.Config{BaseURL: *apiURL, Timeout: *apiTimeout},
		Tracing:        observability.TracingConfigFromEnv(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	log = logging.OrNoop(log)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewOverlayCollector(nil)
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Config{Analytics: cfg.Analytics},
		web.WithLogger(log),
		web.WithCollector(collector),
	)
	if err != nil {
		return err
	}

	metricsSrv := serveMetrics(cfg.MetricsAddress, collector, log)

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(lis)
	}()

	endpoint, _ := cfg.Analytics.Endpoint()
	log.Info(ctx, "serving NDVI overlay",
		logging.String("addr", lis.Addr().String()),
		logging.String("analytics", endpoint),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down NDVI overlay server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.OverlayCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
