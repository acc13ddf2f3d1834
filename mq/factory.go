package mq

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ProducerFactory 按配置创建生产者，由各实现包在 init 中注册
type ProducerFactory func(cfg *Config, logger *zap.Logger) (Producer, error)

var (
	producerFactories = make(map[Type]ProducerFactory)
	factoryMu         sync.RWMutex
)

// RegisterProducerFactory 注册生产者工厂
func RegisterProducerFactory(mqType Type, factory ProducerFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	producerFactories[mqType] = factory
}

// NewProducer 创建生产者；对应实现包需被导入（kafka / rocketmq）
func NewProducer(cfg *Config, logger *zap.Logger) (Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mq config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	factoryMu.RLock()
	factory, ok := producerFactories[cfg.Type]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported MQ type: %s, registered: %v", cfg.Type, AvailableTypes())
	}

	logger.Info("creating MQ producer", zap.String("type", string(cfg.Type)))
	return factory(cfg, logger)
}

// AvailableTypes 已注册的类型，按名称排序
func AvailableTypes() []Type {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]Type, 0, len(producerFactories))
	for t := range producerFactories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
