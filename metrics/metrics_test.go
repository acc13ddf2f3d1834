package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/errors"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	counter := NewCounter("test", "unit", "total", "unit test counter", []string{"k"})
	counter.WithLabelValues("v").Inc()

	app := fiber.New()
	RegisterMetricsEndpoint(app)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "test_unit_total") {
		t.Fatalf("expected metrics output to include test_unit_total")
	}
}

func TestResultLabel(t *testing.T) {
	if got := ResultLabel(nil); got != "ok" {
		t.Fatalf("unexpected label: %s", got)
	}
	if got := ResultLabel(errors.New(errors.ErrCodeAlreadyAllocated, "taken")); got != "already_allocated" {
		t.Fatalf("unexpected label: %s", got)
	}
}

func TestHTTPMetricsMiddlewareUsesRoutePath(t *testing.T) {
	total := NewCounter("test", "http_mw", "total", "middleware counter", []string{"method", "path", "status"})

	app := fiber.New()
	app.Use(HTTPMetricsMiddleware(&HTTPMiddlewareConfig{RequestTotal: total}))
	app.Get("/code-usage/:id", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/code-usage/42", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = resp.Body.Close()

	if got := testutil.ToFloat64(total.WithLabelValues("GET", "/code-usage/:id", "204")); got != 1 {
		t.Fatalf("expected one request on the route pattern, got %v", got)
	}
}

func TestHTTPMetricsMiddlewareSkipsAndCollapsesUnmatched(t *testing.T) {
	total := NewCounter("test", "http_unmatched", "total", "middleware counter", []string{"method", "path", "status"})

	app := fiber.New()
	app.Use(HTTPMetricsMiddleware(&HTTPMiddlewareConfig{
		RequestTotal: total,
		Skipper:      func(c fiber.Ctx) bool { return c.Path() == "/skip" },
	}))
	app.Get("/skip", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, path := range []string{"/skip", "/nope/1", "/nope/2"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), fiber.TestConfig{Timeout: 2 * time.Second})
		if err != nil {
			t.Fatalf("app.Test %s: %v", path, err)
		}
		_ = resp.Body.Close()
	}

	if got := testutil.CollectAndCount(total); got != 1 {
		t.Fatalf("only the unmatched series should exist, got %d", got)
	}
	if got := testutil.ToFloat64(total.WithLabelValues("GET", "<unmatched>", "404")); got != 2 {
		t.Fatalf("unmatched paths should share one series, got %v", got)
	}
}
