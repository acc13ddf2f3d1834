package engine

import (
	"time"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/cache/redis"
	"github.com/aisgo/ais-modelcode/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 引擎配置
type Config struct {
	StructureTTL time.Duration `mapstructure:"structure_ttl"`
	AutoMigrate  bool          `mapstructure:"auto_migrate"`
}

// Engine 组件集合
type Engine struct {
	Repos        *Repos
	Catalog      *HierarchyCatalog
	Prealloc     *PreallocationEngine
	Availability *AvailabilityChecker
	Allocation   *AllocationEngine
	Lifecycle    *LifecycleManager
	Batch        *BatchCoordinator
	Queries      *CodeQueries
	Dictionary   DictionaryLookup
}

// Deps 组装引擎所需依赖；Cache/Sink/Dictionary/Logger 可为空
type Deps struct {
	DB         *gorm.DB
	Cache      StructureCache
	Sink       audit.Sink
	Dictionary DictionaryLookup
	Logger     *logger.Logger
}

// New 组装引擎
func New(d Deps) *Engine {
	if d.Cache == nil {
		d.Cache = NopStructureCache
	}
	if d.Sink == nil {
		d.Sink = audit.Nop
	}
	if d.Dictionary == nil {
		d.Dictionary = DefaultDictionary()
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}

	repos := NewRepos(d.DB)
	catalog := NewHierarchyCatalog(repos, d.Cache, d.Sink, d.Logger)
	prealloc := NewPreallocationEngine(repos, catalog, d.Sink, d.Logger)
	availability := NewAvailabilityChecker(repos, catalog)
	allocation := NewAllocationEngine(repos, catalog, d.Dictionary, d.Sink, d.Logger)
	lifecycle := NewLifecycleManager(repos, d.Sink, d.Logger)

	return &Engine{
		Repos:        repos,
		Catalog:      catalog,
		Prealloc:     prealloc,
		Availability: availability,
		Allocation:   allocation,
		Lifecycle:    lifecycle,
		Batch:        NewBatchCoordinator(catalog, prealloc, availability, allocation, lifecycle, d.Dictionary, d.Logger),
		Queries:      NewCodeQueries(repos),
		Dictionary:   d.Dictionary,
	}
}

type Params struct {
	fx.In
	Config Config
	DB     *gorm.DB
	Sink   audit.Sink     `optional:"true"`
	Redis  redis.Clienter `optional:"true"`
	Logger *logger.Logger
}

// NewEngine fx 构造；redis 可用时启用结构缓存
func NewEngine(p Params) (*Engine, error) {
	if p.Config.AutoMigrate {
		if err := Migrate(p.DB); err != nil {
			return nil, err
		}
	}

	var cache StructureCache = NopStructureCache
	if p.Redis != nil {
		cache = NewRedisStructureCache(p.Redis, p.Config.StructureTTL, p.Logger)
	}
	p.Logger.Info("Model code engine ready",
		zap.Bool("structure_cache", p.Redis != nil),
		zap.Bool("auto_migrate", p.Config.AutoMigrate),
	)

	return New(Deps{DB: p.DB, Cache: cache, Sink: p.Sink, Logger: p.Logger}), nil
}

// Module 引擎模块
// 提供: *engine.Engine
var Module = fx.Module("engine",
	fx.Provide(NewEngine),
)
