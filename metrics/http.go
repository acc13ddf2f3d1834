package metrics

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/aisgo/ais-modelcode/errors"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
)

/* ========================================================================
 * HTTP 请求指标中间件
 * ======================================================================== */

// unmatchedPath 未命中路由的请求统一使用的 path 标签，避免任意 URL 撑爆基数
const unmatchedPath = "<unmatched>"

// HTTPMiddlewareConfig HTTP 指标中间件配置；零值使用包级默认指标
type HTTPMiddlewareConfig struct {
	RequestTotal    *prometheus.CounterVec   // labels: method, path, status
	RequestDuration *prometheus.HistogramVec // labels: method, path, status
	InFlight        prometheus.Gauge

	// Skipper 返回 true 的请求不计入指标（如 /metrics 自身）
	Skipper func(fiber.Ctx) bool
}

// HTTPMetricsMiddleware 记录请求数、耗时与并发中的请求数。
// path 标签取路由模板（/api/v1/code-usage/:id），而不是原始 URL。
func HTTPMetricsMiddleware(cfg *HTTPMiddlewareConfig) fiber.Handler {
	var conf HTTPMiddlewareConfig
	if cfg != nil {
		conf = *cfg
	}
	if conf.RequestTotal == nil {
		conf.RequestTotal = HTTPRequestTotal
	}
	if conf.RequestDuration == nil {
		conf.RequestDuration = HTTPRequestDuration
	}
	if conf.InFlight == nil {
		conf.InFlight = HTTPInFlight
	}

	return func(c fiber.Ctx) error {
		if conf.Skipper != nil && conf.Skipper(c) {
			return c.Next()
		}

		conf.InFlight.Inc()
		defer conf.InFlight.Dec()
		start := time.Now()
		err := c.Next()

		labels := []string{c.Method(), routeLabel(c), strconv.Itoa(statusOf(c, err))}
		conf.RequestTotal.WithLabelValues(labels...).Inc()
		conf.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// statusOf 返回错误时状态码由 ErrorHandler 在中间件之后写入，这里按同样规则推算
func statusOf(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return errors.HTTPStatus(err)
}

// routeLabel 中间件挂在全局时 c.Route() 在 Next 之后才指向真正匹配的路由
func routeLabel(c fiber.Ctx) string {
	route := c.Route()
	if route == nil || route.Path == "" || (route.Path == "/" && c.Path() != "/") {
		return unmatchedPath
	}
	return route.Path
}
