// Command neo-server serves a NEO catalog over gRPC, with Prometheus metrics
// on a separate HTTP listener.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/neo-catalog/internal/config"
	"github.com/signalsfoundry/neo-catalog/internal/extract"
	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/internal/neoapi"
	"github.com/signalsfoundry/neo-catalog/internal/observability"
	"github.com/signalsfoundry/neo-catalog/kb"
)

func main() {
	flags := pflag.NewFlagSet("neo-server", pflag.ExitOnError)
	configPath := flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("grpc-addr", "", "TCP address the gRPC server listens on (default :50051)")
	flags.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables (default :9090)")
	flags.String("neofile", "", "path to the NEO CSV file")
	flags.String("cadfile", "", "path to the close-approach JSON file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(config.New(), *configPath, flags,
		config.FlagBinding{Key: "server.grpc_addr", Flag: "grpc-addr"},
		config.FlagBinding{Key: "server.metrics_addr", Flag: "metrics-addr"},
		config.FlagBinding{Key: "data.neos", Flag: "neofile"},
		config.FlagBinding{Key: "data.approaches", Flag: "cadfile"},
		config.FlagBinding{Key: "log.level", Flag: "log-level"},
		config.FlagBinding{Key: "log.format", Flag: "log-format"},
	)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "invalid configuration", logging.Err(err))
		os.Exit(2)
	}

	log := logging.New(cfg.Logging())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis, prometheus.DefaultRegisterer); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the gRPC server fails.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener, reg prometheus.Registerer) error {
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return errors.Wrap(err, "initialise metrics collector")
	}

	catalog, err := extract.LoadCatalog(ctx, log, cfg.Data.NEOs, cfg.Data.Approaches,
		kb.WithMetricsRecorder(collector))
	if err != nil {
		return err
	}
	stats := catalog.Stats()
	log.Info(ctx, "catalog ready",
		logging.Int("neos", stats.NEOs),
		logging.Int("approaches", stats.Approaches),
		logging.Int("unlinked", stats.Unlinked),
	)

	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	limiter := neoapi.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	if limiter != nil {
		log.Info(ctx, "rate limiting enabled",
			logging.Float("per_second", cfg.Server.RateLimit),
			logging.Int("burst", cfg.Server.RateBurst),
		)
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			neoapi.RequestIDUnaryServerInterceptor(log),
			collector.UnaryServerInterceptor(),
			limiter.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			neoapi.RequestIDStreamServerInterceptor(log),
			collector.StreamServerInterceptor(),
			limiter.StreamServerInterceptor(),
		),
	)
	neoapi.RegisterCatalogServer(server, neoapi.NewCatalogService(catalog, log))

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting catalog gRPC server", logging.String("addr", lis.Addr().String()))
		serveErr <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down catalog server")
		server.GracefulStop()
		err = nil
	case err = <-serveErr:
		err = errors.Wrap(err, "gRPC server")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return err
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
