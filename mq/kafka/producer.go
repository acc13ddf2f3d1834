package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aisgo/ais-modelcode/mq"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

/* ========================================================================
 * Kafka Producer
 * ========================================================================
 * 职责: 实现 mq.Producer；导入本包即注册 kafka 类型
 * 技术: IBM/sarama
 * 消息键决定分区，同一实体的审计事件保持有序；tag 写入 X-Tag header
 * ======================================================================== */

// TagHeader tag 对应的 header 名
const TagHeader = "X-Tag"

func init() {
	mq.RegisterProducerFactory(mq.TypeKafka, NewProducer)
}

// Producer Kafka 生产者
type Producer struct {
	syncProducer  sarama.SyncProducer
	asyncProducer sarama.AsyncProducer
	logger        *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewProducer 创建同步与异步生产者
func NewProducer(cfg *mq.Config, logger *zap.Logger) (mq.Producer, error) {
	if cfg.Kafka == nil {
		return nil, fmt.Errorf("kafka config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sc, err := buildSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to build sarama config: %w", err)
	}

	syncProducer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka sync producer: %w", err)
	}
	asyncProducer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, sc)
	if err != nil {
		_ = syncProducer.Close()
		return nil, fmt.Errorf("failed to create kafka async producer: %w", err)
	}

	p := &Producer{syncProducer: syncProducer, asyncProducer: asyncProducer, logger: logger}
	p.wg.Add(1)
	go p.dispatchAsyncResults()

	logger.Info("Kafka producer started", zap.Strings("brokers", cfg.Kafka.Brokers))
	return p, nil
}

// dispatchAsyncResults 异步结果经 ProducerMessage.Metadata 关联回调
// 两个 channel 都在 asyncProducer.Close 后关闭
func (p *Producer) dispatchAsyncResults() {
	defer p.wg.Done()

	successes, failures := p.asyncProducer.Successes(), p.asyncProducer.Errors()
	for successes != nil || failures != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			if cb, ok := msg.Metadata.(mq.SendCallback); ok && cb != nil {
				cb(sendResult(msg.Topic, msg.Partition, msg.Offset), nil)
			}
		case perr, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			if cb, ok := perr.Msg.Metadata.(mq.SendCallback); ok && cb != nil {
				cb(nil, perr.Err)
			} else {
				p.logger.Error("async producer error", zap.String("topic", perr.Msg.Topic), zap.Error(perr.Err))
			}
		}
	}
}

func (p *Producer) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// SendSync 同步发送
func (p *Producer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if p.isClosed() {
		return nil, fmt.Errorf("producer is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partition, offset, err := p.syncProducer.SendMessage(toProducerMessage(msg))
	if err != nil {
		p.logger.Error("failed to send message", zap.String("topic", msg.Topic), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return sendResult(msg.Topic, partition, offset), nil
}

// SendAsync 异步发送，callback 在后台 goroutine 中调用
func (p *Producer) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	if p.isClosed() {
		return fmt.Errorf("producer is closed")
	}

	pm := toProducerMessage(msg)
	pm.Metadata = callback
	select {
	case p.asyncProducer.Input() <- pm:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 先关闭异步生产者并排空结果，再关闭同步生产者
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if err := p.asyncProducer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("async producer close: %w", err))
	}
	p.wg.Wait()
	if err := p.syncProducer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sync producer close: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		p.logger.Error("failed to close producer", zap.Error(err))
		return err
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

func sendResult(topic string, partition int32, offset int64) *mq.SendResult {
	return &mq.SendResult{
		MsgID:     fmt.Sprintf("%s-%d-%d", topic, partition, offset),
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Status:    mq.SendStatusOK,
	}
}

func toProducerMessage(msg *mq.Message) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		pm.Key = sarama.StringEncoder(msg.Key)
	}

	headers := make([]sarama.RecordHeader, 0, len(msg.Properties)+1)
	for k, v := range msg.Properties {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	if msg.Tag != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte(TagHeader), Value: []byte(msg.Tag)})
	}
	if len(headers) > 0 {
		pm.Headers = headers
	}
	return pm
}
