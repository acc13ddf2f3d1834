package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aisgo/ais-modelcode/mq"
)

// DefaultTopic 默认审计主题
const DefaultTopic = "modelcode-audit"

// MQSink 以 JSON 发送到消息队列，消息键为实体 ID（同实体有序）
type MQSink struct {
	producer mq.Producer
	topic    string
}

func NewMQSink(producer mq.Producer, topic string) *MQSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQSink{producer: producer, topic: topic}
}

func (s *MQSink) Record(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	msg := mq.NewMessage(s.topic, body).
		WithKey(e.EntityType + ":" + e.EntityID).
		WithTag(string(e.Action)).
		WithProperty("operator", e.Operator)
	_, err = s.producer.SendSync(ctx, msg)
	return err
}
