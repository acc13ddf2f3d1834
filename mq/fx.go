package mq

import (
	"context"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/shutdown"

	"go.uber.org/fx"
)

// ProducerParams Producer 依赖
type ProducerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Config   *Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager `optional:"true"`
}

// ProducerResult mq.enabled=false 时 Producer 为 nil，由下游按 optional 处理
type ProducerResult struct {
	fx.Out

	Producer Producer
}

// ProvideProducer 提供 Producer
func ProvideProducer(p ProducerParams) (ProducerResult, error) {
	if p.Config == nil || !p.Config.Enabled {
		return ProducerResult{}, nil
	}
	if err := p.Config.Validate(); err != nil {
		return ProducerResult{}, err
	}

	producer, err := NewProducer(p.Config, p.Logger.Logger)
	if err != nil {
		return ProducerResult{}, err
	}
	// 在 HTTP 摘流之后关闭，保证最后一批审计消息已投递
	if p.Shutdown != nil {
		p.Shutdown.Register("mq-producer", shutdown.PriorityProducer, func(context.Context) error {
			return producer.Close()
		})
	} else {
		p.Lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return producer.Close()
			},
		})
	}
	return ProducerResult{Producer: producer}, nil
}

// Module MQ 模块
// 提供: mq.Producer（可能为 nil）
var Module = fx.Module("mq",
	fx.Provide(ProvideProducer),
)
