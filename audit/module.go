package audit

import (
	"fmt"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/mq"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Config 审计配置
type Config struct {
	Log   bool   `mapstructure:"log"`   // 输出到日志
	DB    bool   `mapstructure:"db"`    // 写入 audit_logs
	MQ    bool   `mapstructure:"mq"`    // 发送到消息队列
	Topic string `mapstructure:"topic"` // MQ 主题
}

type Params struct {
	fx.In
	Config   Config
	Logger   *logger.Logger
	DB       *gorm.DB    `optional:"true"`
	Producer mq.Producer `optional:"true"`
}

// NewSink 按配置组合审计落地
func NewSink(p Params) (Sink, error) {
	var sinks MultiSink
	if p.Config.Log {
		sinks = append(sinks, NewLogSink(p.Logger))
	}
	if p.Config.DB {
		if p.DB == nil {
			return nil, fmt.Errorf("audit.db enabled without a database")
		}
		sinks = append(sinks, NewDBSink(p.DB))
	}
	if p.Config.MQ {
		if p.Producer == nil {
			return nil, fmt.Errorf("audit.mq enabled without an mq producer")
		}
		sinks = append(sinks, NewMQSink(p.Producer, p.Config.Topic))
	}
	if len(sinks) == 0 {
		return Nop, nil
	}
	return sinks, nil
}

// Module 审计模块
// 提供: audit.Sink
var Module = fx.Module("audit",
	fx.Provide(NewSink),
)
