package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"

	"go.uber.org/zap"
)

/* ========================================================================
 * Structure Cache - 型号结构缓存
 * ========================================================================
 * key: modelcode:structure:{TYPE}，值为 Structure 的 JSON
 * 型号分类任何写操作后失效；redis 未配置时为直通
 * ======================================================================== */

const structureKeyPrefix = "modelcode:structure:"

// DefaultStructureTTL 默认缓存时间
const DefaultStructureTTL = 10 * time.Minute

// StructureCache 结构缓存接口
type StructureCache interface {
	Get(ctx context.Context, modelType string) (*Structure, bool)
	Set(ctx context.Context, s *Structure)
	Invalidate(ctx context.Context, modelTypes ...string)
}

type nopStructureCache struct{}

func (nopStructureCache) Get(context.Context, string) (*Structure, bool) { return nil, false }
func (nopStructureCache) Set(context.Context, *Structure)                {}
func (nopStructureCache) Invalidate(context.Context, ...string)          {}

// NopStructureCache 不缓存
var NopStructureCache StructureCache = nopStructureCache{}

// RedisStructureCache 基于 Redis 的结构缓存，读写失败降级为未命中
type RedisStructureCache struct {
	client redis.Clienter
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisStructureCache 创建 Redis 结构缓存
func NewRedisStructureCache(client redis.Clienter, ttl time.Duration, log *logger.Logger) *RedisStructureCache {
	if ttl <= 0 {
		ttl = DefaultStructureTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisStructureCache{client: client, ttl: ttl, log: log}
}

func (c *RedisStructureCache) Get(ctx context.Context, modelType string) (*Structure, bool) {
	raw, err := c.client.Get(ctx, structureKeyPrefix+modelType)
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.log.WithContext(ctx).Warn("structure cache get failed", zap.String("model_type", modelType), zap.Error(err))
		}
		metrics.CacheHitTotal.WithLabelValues("structure", "false").Inc()
		return nil, false
	}

	var s Structure
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		c.log.WithContext(ctx).Warn("structure cache decode failed", zap.String("model_type", modelType), zap.Error(err))
		metrics.CacheHitTotal.WithLabelValues("structure", "false").Inc()
		return nil, false
	}
	metrics.CacheHitTotal.WithLabelValues("structure", "true").Inc()
	return &s, true
}

func (c *RedisStructureCache) Set(ctx context.Context, s *Structure) {
	if s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, structureKeyPrefix+s.ModelClassification.Type, data, c.ttl); err != nil {
		c.log.WithContext(ctx).Warn("structure cache set failed", zap.Error(err))
	}
}

func (c *RedisStructureCache) Invalidate(ctx context.Context, modelTypes ...string) {
	keys := make([]string, 0, len(modelTypes))
	for _, t := range modelTypes {
		if t != "" {
			keys = append(keys, structureKeyPrefix+t)
		}
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		c.log.WithContext(ctx).Warn("structure cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
