package middleware

import (
	"time"

	"github.com/aisgo/ais-modelcode/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// RequestID 透传或生成请求 ID，写入响应头与 request context
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.SetContext(logger.ContextWithRequestID(c.Context(), id))
		return c.Next()
	}
}

// AccessLog 请求完成后记录一行访问日志
func AccessLog(log *logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		l := log.WithContext(c.Context())
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			l.Error("request", append(fields, zap.Error(err))...)
		case status >= fiber.StatusBadRequest:
			l.Warn("request", fields...)
		default:
			l.Info("request", fields...)
		}
		return err
	}
}
