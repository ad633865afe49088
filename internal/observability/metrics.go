package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles Prometheus metrics for the catalog and its gRPC surface.
// It satisfies kb.CatalogMetricsRecorder.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	CatalogNEOs       prometheus.Gauge
	CatalogApproaches prometheus.Gauge
	CatalogUnlinked   prometheus.Gauge

	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	QueryResults  prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice against the same registry
// reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "neoapi_requests_total",
		Help: "Total number of handled catalog RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "neoapi_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neoapi_request_duration_seconds",
		Help:    "Catalog RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "method"}), "neoapi_request_duration_seconds"); err != nil {
		return nil, err
	}

	if c.CatalogNEOs, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_neos",
		Help: "Number of near-earth objects in the catalog.",
	}), "catalog_neos"); err != nil {
		return nil, err
	}
	if c.CatalogApproaches, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_approaches",
		Help: "Number of close approaches in the catalog, linked or not.",
	}), "catalog_approaches"); err != nil {
		return nil, err
	}
	if c.CatalogUnlinked, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_unlinked_approaches",
		Help: "Close approaches whose designation matched no object.",
	}), "catalog_unlinked_approaches"); err != nil {
		return nil, err
	}

	if c.Queries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_queries_total",
		Help: "Catalog queries evaluated, labeled by outcome.",
	}, []string{"outcome"}), "catalog_queries_total"); err != nil {
		return nil, err
	}
	if c.QueryDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_query_duration_seconds",
		Help:    "Time spent filtering and sorting a catalog query.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}), "catalog_query_duration_seconds"); err != nil {
		return nil, err
	}
	if c.QueryResults, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_query_results",
		Help:    "Approaches matching a catalog query before any limit.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}), "catalog_query_results"); err != nil {
		return nil, err
	}

	return c, nil
}

// SetCatalogCounts records the catalog sizes after construction.
func (c *Collector) SetCatalogCounts(neos, approaches, unlinked int) {
	if c == nil {
		return
	}
	c.CatalogNEOs.Set(float64(neos))
	c.CatalogApproaches.Set(float64(approaches))
	c.CatalogUnlinked.Set(float64(unlinked))
}

// ObserveQuery records one query evaluation.
func (c *Collector) ObserveQuery(outcome string, matched int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(outcome).Inc()
	c.QueryDuration.Observe(elapsed.Seconds())
	if outcome == "ok" {
		c.QueryResults.Observe(float64(matched))
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.record(fullMethod, err, start)
		return resp, err
	}
}

// StreamServerInterceptor records request counts and durations for
// streaming RPCs; the duration covers the whole stream.
func (c *Collector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.record(fullMethod, err, start)
		return err
	}
}

func (c *Collector) record(fullMethod string, err error, start time.Time) {
	if c == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	code := status.Code(err).String()
	c.RPCRequests.WithLabelValues(service, method, code).Inc()
	c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds col to reg, or returns the collector already registered
// under the same descriptor when its type matches.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return col, nil
}
