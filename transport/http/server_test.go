package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
)

func TestBuildListenConfigDefaults(t *testing.T) {
	cfg := buildListenConfig(ListenOptions{})
	if cfg.ListenerNetwork != "tcp4" {
		t.Fatalf("unexpected listener network: %s", cfg.ListenerNetwork)
	}
}

func TestBuildListenConfigOverrides(t *testing.T) {
	cfg := buildListenConfig(ListenOptions{
		DisableStartupMessage: true,
		ListenerNetwork:       "tcp6",
		ShutdownTimeout:       2 * time.Second,
		TLSMinVersion:         772,
	})
	if !cfg.DisableStartupMessage {
		t.Fatalf("expected startup message disabled")
	}
	if cfg.ListenerNetwork != "tcp6" {
		t.Fatalf("unexpected listener network: %s", cfg.ListenerNetwork)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	if cfg.TLSMinVersion != 772 {
		t.Fatalf("unexpected tls min version: %d", cfg.TLSMinVersion)
	}
}

func getResult(t *testing.T, app *fiber.App, path string) (int, response.Result) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body response.Result
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthEndpoints(t *testing.T) {
	db, err := sqlite.NewDB(sqlite.Params{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	app := fiber.New()
	registerHealthEndpoints(app, healthDeps{db: db}, 2*time.Second)

	status, body := getResult(t, app, "/health")
	if status != fiber.StatusOK || !body.Success {
		t.Fatalf("health: status %d body %+v", status, body)
	}

	status, body = getResult(t, app, "/ready")
	if status != fiber.StatusOK || !body.Success {
		t.Fatalf("ready: status %d body %+v", status, body)
	}
	data, _ := body.Data.(map[string]any)
	checks, _ := data["checks"].(map[string]any)
	if checks["database"] != "ok" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestReadyReportsClosedDatabase(t *testing.T) {
	db, err := sqlite.NewDB(sqlite.Params{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	app := fiber.New()
	registerHealthEndpoints(app, healthDeps{db: db}, time.Second)

	status, body := getResult(t, app, "/ready")
	if status != fiber.StatusServiceUnavailable || body.Success || body.Code != "UNAVAILABLE" {
		t.Fatalf("expected unavailable, got %d %+v", status, body)
	}
}

type pingRoutes struct{}

func (pingRoutes) Register(r fiber.Router) {
	r.Get("/ping", func(c fiber.Ctx) error { return response.OkWithData(c, "pong") })
}

func TestNewAppMountsRoutesUnderAPIPrefix(t *testing.T) {
	app := NewApp(ServerParams{Routes: pingRoutes{}})

	status, body := getResult(t, app, "/api/v1/ping")
	if status != fiber.StatusOK || body.Data != "pong" {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}
