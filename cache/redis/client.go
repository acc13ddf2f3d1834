package redis

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/shutdown"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Redis Client - 缓存客户端
 * ========================================================================
 * 职责: 提供 Redis 连接池与缓存操作（结构缓存、限流存储）
 * 技术: go-redis/v9
 * ======================================================================== */

// Nil key 不存在
var Nil = redis.Nil

// Config Redis 配置
type Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr 返回 host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Clienter 缓存操作接口
type Clienter interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Client Redis 客户端封装
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

var _ Clienter = (*Client)(nil)

type ClientParams struct {
	fx.In
	Lc       fx.Lifecycle `optional:"true"`
	Config   Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager `optional:"true"`
}

// NewClient 创建 Redis 客户端
func NewClient(p ClientParams) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         p.Config.Addr(),
		Password:     p.Config.Password,
		DB:           p.Config.DB,
		PoolSize:     p.Config.PoolSize,
		MinIdleConns: p.Config.MinIdleConns,
	})

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	client := &Client{rdb: rdb, log: log}

	closeRedis := func(context.Context) error {
		log.Info("Closing Redis connection")
		return rdb.Close()
	}
	if p.Shutdown != nil {
		p.Shutdown.Register("redis", shutdown.PriorityStorage, closeRedis)
	}
	if p.Lc != nil {
		hook := fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := rdb.Ping(ctx).Err(); err != nil {
					log.Error("Redis connection failed", zap.Error(err))
					return err
				}
				log.Info("Redis connected", zap.String("addr", p.Config.Addr()))
				return nil
			},
		}
		if p.Shutdown == nil {
			hook.OnStop = closeRedis
		}
		p.Lc.Append(hook)
	}

	return client
}

// NewClientFromRaw 包装已有连接（测试或共享连接池）
func NewClientFromRaw(rdb *redis.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{rdb: rdb, log: log}
}

// Raw 返回底层 Redis 客户端 (用于限流存储等高级操作)
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

/* ========================================================================
 * 缓存操作
 * ======================================================================== */

// Get 获取缓存，key 不存在返回 Nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set 设置缓存
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// Del 删除缓存
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
