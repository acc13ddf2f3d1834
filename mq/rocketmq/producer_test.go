package rocketmq

import (
	"testing"

	"github.com/aisgo/ais-modelcode/mq"

	"github.com/apache/rocketmq-client-go/v2/primitive"
)

func TestToMessage(t *testing.T) {
	msg := mq.NewMessage("modelcode-audit", []byte(`{}`)).
		WithKey("code_usage:42").
		WithTag("allocate").
		WithProperty("operator", "alice")

	m := toMessage(msg)
	if m.Topic != "modelcode-audit" || string(m.Body) != `{}` {
		t.Fatalf("topic/body = %s/%s", m.Topic, m.Body)
	}
	if m.GetKeys() != "code_usage:42" {
		t.Fatalf("keys = %q", m.GetKeys())
	}
	if m.GetTags() != "allocate" {
		t.Fatalf("tag = %q", m.GetTags())
	}
	if m.GetProperty("operator") != "alice" {
		t.Fatalf("operator = %q", m.GetProperty("operator"))
	}
}

func TestFromSendResult(t *testing.T) {
	if fromSendResult(nil) != nil {
		t.Fatalf("nil result must stay nil")
	}
	got := fromSendResult(&primitive.SendResult{
		Status:       primitive.SendOK,
		MsgID:        "m-1",
		MessageQueue: &primitive.MessageQueue{Topic: "t"},
	})
	if got.MsgID != "m-1" || got.Topic != "t" || got.Status != mq.SendStatusOK {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestProducerOptionsRequiresConfig(t *testing.T) {
	if _, err := NewProducer(&mq.Config{Type: mq.TypeRocketMQ}, nil); err == nil {
		t.Fatalf("expected error without rocketmq config")
	}
	if n := len(producerOptions(mq.DefaultRocketMQConfig())); n < 5 {
		t.Fatalf("expected default options, got %d", n)
	}
}
