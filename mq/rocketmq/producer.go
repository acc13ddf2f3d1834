package rocketmq

import (
	"context"
	"fmt"

	"github.com/aisgo/ais-modelcode/mq"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"go.uber.org/zap"
)

/* ========================================================================
 * RocketMQ Producer
 * ========================================================================
 * 职责: 实现 mq.Producer；导入本包即注册 rocketmq 类型
 * 技术: apache/rocketmq-client-go/v2
 * 键同时作为 sharding key，同一实体的事件进入同一队列
 * ======================================================================== */

func init() {
	mq.RegisterProducerFactory(mq.TypeRocketMQ, NewProducer)
}

// Producer RocketMQ 生产者
type Producer struct {
	producer rocketmq.Producer
	logger   *zap.Logger
}

// NewProducer 创建并启动生产者
func NewProducer(cfg *mq.Config, logger *zap.Logger) (mq.Producer, error) {
	if cfg.RocketMQ == nil {
		return nil, fmt.Errorf("rocketmq config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := rocketmq.NewProducer(producerOptions(cfg.RocketMQ)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create rocketmq producer: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start rocketmq producer: %w", err)
	}

	logger.Info("RocketMQ producer started",
		zap.String("group", cfg.RocketMQ.Producer.GroupName),
		zap.Strings("name_servers", cfg.RocketMQ.NameServers),
	)
	return &Producer{producer: p, logger: logger}, nil
}

func producerOptions(cfg *mq.RocketMQConfig) []producer.Option {
	opts := []producer.Option{
		producer.WithNameServer(cfg.NameServers),
		producer.WithGroupName(cfg.Producer.GroupName),
		producer.WithRetry(cfg.Producer.RetryTimesOnFailed),
		producer.WithSendMsgTimeout(cfg.Producer.SendMsgTimeout),
	}
	if cfg.Namespace != "" {
		opts = append(opts, producer.WithNamespace(cfg.Namespace))
	}
	if cfg.InstanceName != "" {
		opts = append(opts, producer.WithInstanceName(cfg.InstanceName))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, producer.WithCredentials(primitive.Credentials{
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		}))
	}
	return opts
}

// SendSync 同步发送
func (p *Producer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	result, err := p.producer.SendSync(ctx, toMessage(msg))
	if err != nil {
		p.logger.Error("failed to send message", zap.String("topic", msg.Topic), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("message sent", zap.String("topic", msg.Topic), zap.String("msg_id", result.MsgID))
	return fromSendResult(result), nil
}

// SendAsync 异步发送
func (p *Producer) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	err := p.producer.SendAsync(ctx, func(_ context.Context, result *primitive.SendResult, err error) {
		if callback != nil {
			callback(fromSendResult(result), err)
		}
	}, toMessage(msg))
	if err != nil {
		p.logger.Error("failed to send async message", zap.String("topic", msg.Topic), zap.Error(err))
	}
	return err
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if err := p.producer.Shutdown(); err != nil {
		p.logger.Error("failed to shutdown producer", zap.Error(err))
		return err
	}
	p.logger.Info("RocketMQ producer closed")
	return nil
}

func toMessage(msg *mq.Message) *primitive.Message {
	m := primitive.NewMessage(msg.Topic, msg.Body)
	if msg.Key != "" {
		m.WithKeys([]string{msg.Key})
		m.WithShardingKey(msg.Key)
	}
	if msg.Tag != "" {
		m.WithTag(msg.Tag)
	}
	for k, v := range msg.Properties {
		m.WithProperty(k, v)
	}
	return m
}

func fromSendResult(result *primitive.SendResult) *mq.SendResult {
	if result == nil {
		return nil
	}
	out := &mq.SendResult{MsgID: result.MsgID, Status: mq.SendStatus(result.Status)}
	if result.MessageQueue != nil {
		out.Topic = result.MessageQueue.Topic
	}
	return out
}
