package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
)

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString(logger.RequestIDFromContext(c.Context()))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := resp.Header.Get(HeaderRequestID); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}
}

func hit(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestRateLimiterMemoryStore(t *testing.T) {
	rl, err := NewRateLimiter(RateLimitConfig{Enabled: true, Limit: 2, Period: time.Minute}, nil, nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	app := fiber.New()
	app.Post("/", rl.Handler(), func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if s := hit(t, app); s != http.StatusOK {
			t.Fatalf("request %d: status %d", i, s)
		}
	}
	if s := hit(t, app); s != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", s)
	}
}

func TestRateLimiterRedisStore(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl, err := NewRateLimiter(RateLimitConfig{Enabled: true, Limit: 1, Period: time.Minute, Store: "redis"}, rdb, nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	app := fiber.New()
	app.Post("/", rl.Handler(), func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	if s := hit(t, app); s != http.StatusOK {
		t.Fatalf("first request: %d", s)
	}
	if s := hit(t, app); s != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", s)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl, err := NewRateLimiter(RateLimitConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	app := fiber.New()
	app.Post("/", rl.Handler(), func(c fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	for i := 0; i < 5; i++ {
		if s := hit(t, app); s != http.StatusOK {
			t.Fatalf("disabled limiter returned %d", s)
		}
	}
}
