package mq

import (
	"context"
	"encoding/json"
	"fmt"
)

/* ========================================================================
 * MQ - 事件发布
 * ========================================================================
 * 职责: 把编码分配、生命周期等审计事件发布到 RocketMQ / Kafka
 * 约束: 只发布不消费，下游系统自行订阅
 * ======================================================================== */

// Producer 消息生产者
type Producer interface {
	// SendSync 同步发送，返回后 broker 已确认
	SendSync(ctx context.Context, msg *Message) (*SendResult, error)

	// SendAsync 异步发送，结果经 callback 回传
	SendAsync(ctx context.Context, msg *Message, callback SendCallback) error

	Close() error
}

// Message 与具体 MQ 无关的消息
type Message struct {
	Topic      string
	Body       []byte
	Key        string            // 分区/顺序键，同一实体使用同一键
	Tag        string            // RocketMQ tag；Kafka 写入 X-Tag header
	Properties map[string]string // RocketMQ 属性；Kafka header
}

// NewMessage 创建消息
func NewMessage(topic string, body []byte) *Message {
	return &Message{Topic: topic, Body: body, Properties: make(map[string]string)}
}

// NewJSONMessage 以 JSON 编码 v 作为消息体
func NewJSONMessage(topic string, v any) (*Message, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message for %s: %w", topic, err)
	}
	return NewMessage(topic, body), nil
}

func (m *Message) WithKey(key string) *Message {
	m.Key = key
	return m
}

func (m *Message) WithTag(tag string) *Message {
	m.Tag = tag
	return m
}

// WithProperty 空值忽略
func (m *Message) WithProperty(key, value string) *Message {
	if value == "" {
		return m
	}
	if m.Properties == nil {
		m.Properties = make(map[string]string)
	}
	m.Properties[key] = value
	return m
}

// SendResult 发送结果
type SendResult struct {
	MsgID     string
	Topic     string
	Partition int32 // Kafka
	Offset    int64 // Kafka
	Status    SendStatus
}

// SendStatus 发送状态
type SendStatus int

const (
	SendStatusOK SendStatus = iota
	SendStatusFlushDiskTimeout
	SendStatusFlushSlaveTimeout
	SendStatusSlaveNotAvailable
	SendStatusUnknownError
)

// SendCallback 异步发送回调
type SendCallback func(result *SendResult, err error)

// Type MQ 类型
type Type string

const (
	TypeRocketMQ Type = "rocketmq"
	TypeKafka    Type = "kafka"
)
