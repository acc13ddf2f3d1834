package middleware

import (
	"strconv"
	"time"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

/* ========================================================================
 * Rate Limit - 写接口限流
 * ========================================================================
 * 按操作人计数，未认证请求按 IP；多实例部署使用 redis 存储共享计数
 * ======================================================================== */

const rateLimitPrefix = "modelcode:ratelimit"

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int64         `mapstructure:"limit"`  // 每周期请求数
	Period  time.Duration `mapstructure:"period"` // 统计周期
	Store   string        `mapstructure:"store"`  // memory / redis
}

// RateLimiter 限流中间件
type RateLimiter struct {
	enabled bool
	lim     *limiter.Limiter
	log     *logger.Logger
}

// NewRateLimiter 创建限流器；store=redis 时需要 rdb
func NewRateLimiter(cfg RateLimitConfig, rdb *goredis.Client, log *logger.Logger) (*RateLimiter, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if !cfg.Enabled {
		return &RateLimiter{log: log}, nil
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}

	var store limiter.Store
	if cfg.Store == "redis" && rdb != nil {
		s, err := redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix, CleanUpInterval: time.Minute})
	}

	log.Info("Rate limiter enabled",
		zap.Int64("limit", cfg.Limit),
		zap.Duration("period", cfg.Period),
		zap.String("store", cfg.Store),
	)
	return &RateLimiter{
		enabled: true,
		lim:     limiter.New(store, limiter.Rate{Period: cfg.Period, Limit: cfg.Limit}),
		log:     log,
	}, nil
}

// Handler 需挂在 Authenticate 之后，才能按操作人计数
func (r *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		if r == nil || !r.enabled {
			return c.Next()
		}

		key := "ip:" + c.IP()
		if op := logger.OperatorFromContext(c.Context()); op != "" {
			key = "op:" + op
		}

		lc, err := r.lim.Get(c.Context(), key)
		if err != nil {
			// 存储不可用时放行，不阻断分配
			r.log.WithContext(c.Context()).Warn("rate limit check failed", zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		if lc.Reached {
			c.Set("Retry-After", strconv.FormatInt(max(lc.Reset-time.Now().Unix(), 1), 10))
			return response.TooManyRequests(c, "too many requests")
		}
		return c.Next()
	}
}
