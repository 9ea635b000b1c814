package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func newEcho(p *Provider) *echo.Echo {
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/metrics", p.PrometheusHandler())
	e.GET("/encounters/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})
	return e
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func histogramCount(t *testing.T, p *Provider, route, status string) uint64 {
	t.Helper()
	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "frontdesk_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "route") == route && labelValue(m, "status") == status {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	p := NewProvider()
	e := newEcho(p)

	serve(e, "/encounters/a")
	serve(e, "/encounters/b")
	serve(e, "/encounters/missing")

	if got := histogramCount(t, p, "/encounters/:id", "200"); got != 2 {
		t.Fatalf("expected 2 observations for 200, got %d", got)
	}
	if got := histogramCount(t, p, "/encounters/:id", "404"); got != 1 {
		t.Fatalf("expected 1 observation for 404, got %d", got)
	}
	if got := testutil.ToFloat64(p.active); got != 0 {
		t.Fatalf("expected no in-flight requests, got %v", got)
	}
}

func TestMetricsMiddleware_HandlerErrorRecordedAs500(t *testing.T) {
	p := NewProvider()
	e := newEcho(p)

	rec := serve(e, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := histogramCount(t, p, "/boom", "500"); got != 1 {
		t.Fatalf("expected 1 observation for 500, got %d", got)
	}
}

func TestPrometheusHandler_ExposesMetrics(t *testing.T) {
	p := NewProvider()
	if err := p.RegisterGauge("provisional_requests", "Held requests.", func() float64 { return 3 }); err != nil {
		t.Fatalf("register gauge: %v", err)
	}
	e := newEcho(p)
	serve(e, "/encounters/a")

	rec := serve(e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"frontdesk_http_request_duration_seconds_bucket",
		"frontdesk_http_active_requests",
		"frontdesk_provisional_requests 3",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
	if strings.Contains(body, `route="/metrics"`) {
		t.Error("scrape endpoint must not record itself")
	}
}

func TestRegisterGauge_DuplicateRejected(t *testing.T) {
	p := NewProvider()
	fn := func() float64 { return 1 }
	if err := p.RegisterGauge("x", "x", fn); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := p.RegisterGauge("x", "x", fn); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestObservePool(t *testing.T) {
	p := NewProvider()
	stats := func() PoolStats { return PoolStats{Acquired: 2, Idle: 3, Total: 5} }
	if err := p.ObservePool(stats); err != nil {
		t.Fatalf("observe pool: %v", err)
	}
	n, err := testutil.GatherAndCount(p.Registry(),
		"frontdesk_db_pool_acquired_connections",
		"frontdesk_db_pool_idle_connections",
		"frontdesk_db_pool_total_connections")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pool gauges, got %d", n)
	}
	rec := serve(newEcho(p), "/metrics")
	if !strings.Contains(rec.Body.String(), "frontdesk_db_pool_total_connections 5") {
		t.Error("expected total connections gauge to read 5")
	}
	if err := p.ObservePool(stats); err == nil {
		t.Fatal("expected second registration to fail")
	}
}
