package http

import (
	"context"
	"runtime"
	"time"

	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"
)

/* ========================================================================
 * Health Check Endpoints
 * ========================================================================
 * /health - 存活探针，进程能响应即 200
 * /ready  - 就绪探针，数据库不可达时 503；redis 仅降级缓存，不影响就绪
 * ======================================================================== */

type healthDeps struct {
	db    *gorm.DB
	redis redis.Clienter
}

type readiness struct {
	Status     string            `json:"status"`
	Time       string            `json:"time"`
	Checks     map[string]string `json:"checks"`
	Goroutines int               `json:"goroutines"`
}

func registerHealthEndpoints(app *fiber.App, deps healthDeps, timeout time.Duration) {
	app.Get("/health", func(c fiber.Ctx) error {
		return response.OkWithData(c, fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Get("/ready", func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), timeout)
		defer cancel()

		r := readiness{
			Status:     "ok",
			Time:       time.Now().Format(time.RFC3339),
			Checks:     make(map[string]string),
			Goroutines: runtime.NumGoroutine(),
		}

		if deps.db != nil {
			if err := pingDB(ctx, deps.db); err != nil {
				r.Checks["database"] = "error: " + err.Error()
				r.Status = "unhealthy"
			} else {
				r.Checks["database"] = "ok"
			}
		}
		if deps.redis != nil {
			if err := deps.redis.Ping(ctx); err != nil {
				r.Checks["redis"] = "degraded: " + err.Error()
			} else {
				r.Checks["redis"] = "ok"
			}
		}

		if r.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(response.Result{
				Success: false,
				Data:    r,
				Message: "service not ready",
				Code:    "UNAVAILABLE",
			})
		}
		return response.OkWithData(c, r)
	})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
