// Package telemetry exposes Prometheus metrics for the front-desk server:
// HTTP request latency by route, in-flight requests, database pool usage and
// gauges supplied by the domain packages.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "frontdesk"

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Provider owns a private registry so tests and multiple servers in one
// process never collide on the global one.
type Provider struct {
	reg      *prometheus.Registry
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	p := &Provider{
		reg: reg,
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route", "status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
	}
	reg.MustRegister(
		p.duration,
		p.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry is exposed for tests.
func (p *Provider) Registry() *prometheus.Registry { return p.reg }

// RegisterGauge adds a gauge whose value is read from fn at scrape time.
func (p *Provider) RegisterGauge(name, help string, fn func() float64) error {
	return p.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
}

// PgxPoolStats adapts a pgx pool for ObservePool.
func PgxPoolStats(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		st := pool.Stat()
		return PoolStats{Acquired: st.AcquiredConns(), Idle: st.IdleConns(), Total: st.TotalConns()}
	}
}

// ObservePool publishes acquired, idle and total connection counts.
func (p *Provider) ObservePool(stats func() PoolStats) error {
	gauges := []struct {
		name, help string
		read       func(PoolStats) int32
	}{
		{"db_pool_acquired_connections", "Connections currently checked out of the pool.", func(s PoolStats) int32 { return s.Acquired }},
		{"db_pool_idle_connections", "Idle connections held by the pool.", func(s PoolStats) int32 { return s.Idle }},
		{"db_pool_total_connections", "All connections owned by the pool.", func(s PoolStats) int32 { return s.Total }},
	}
	for _, g := range gauges {
		read := g.read
		if err := p.RegisterGauge(g.name, g.help, func() float64 {
			return float64(read(stats()))
		}); err != nil {
			return err
		}
	}
	return nil
}

// MetricsMiddleware records latency labelled by the route template, not the
// raw path, so ids do not explode label cardinality.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip(c) {
				return next(c)
			}
			p.active.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo render the error so the status label is final.
				c.Error(err)
			}

			p.active.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			p.duration.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// PrometheusHandler serves the registry in the text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// skip keeps the scrape endpoint out of its own latency histogram.
func skip(c echo.Context) bool {
	return c.Request().Method == http.MethodGet && c.Path() == "/metrics"
}
