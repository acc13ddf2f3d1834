package middleware

import (
	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type RateLimiterParams struct {
	fx.In
	Config RateLimitConfig
	Redis  *redis.Client `optional:"true"`
	Logger *logger.Logger
}

// ProvideRateLimiter redis 可用且配置 store=redis 时使用共享计数
func ProvideRateLimiter(p RateLimiterParams) (*RateLimiter, error) {
	var rdb *goredis.Client
	if p.Redis != nil {
		rdb = p.Redis.Raw()
	}
	return NewRateLimiter(p.Config, rdb, p.Logger)
}

// Module HTTP 中间件模块
// 提供: *AuthHeaderVerifier, *RateLimiter
var Module = fx.Module("middleware",
	fx.Provide(
		NewAuthHeaderVerifier,
		ProvideRateLimiter,
	),
)
