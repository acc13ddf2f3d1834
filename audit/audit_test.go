package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/mq"
)

type captureProducer struct {
	msgs []*mq.Message
}

func (p *captureProducer) SendSync(_ context.Context, msg *mq.Message) (*mq.SendResult, error) {
	p.msgs = append(p.msgs, msg)
	return &mq.SendResult{Topic: msg.Topic}, nil
}

func (p *captureProducer) SendAsync(ctx context.Context, msg *mq.Message, cb mq.SendCallback) error {
	res, err := p.SendSync(ctx, msg)
	if cb != nil {
		cb(res, err)
	}
	return nil
}

func (p *captureProducer) Close() error { return nil }

func TestEntryFromContext(t *testing.T) {
	ctx := logger.ContextWithOperator(context.Background(), "alice")
	ctx = logger.ContextWithRequestID(ctx, "req-1")

	e := NewEntry(ctx, ActionAllocate, EntityCodeUsage, "42").
		WithResult(errors.New(errors.ErrCodeAlreadyAllocated, "code SLU-101 is already allocated"))

	if e.ID == "" || e.Operator != "alice" || e.RequestID != "req-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Success || e.Message != "code SLU-101 is already allocated" {
		t.Fatalf("unexpected result fields: %+v", e)
	}
}

func TestNewSinkWritesDBAndMQ(t *testing.T) {
	db, err := sqlite.NewDB(sqlite.Params{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	producer := &captureProducer{}

	sink, err := NewSink(Params{
		Config:   Config{Log: true, DB: true, MQ: true, Topic: "audit-test"},
		Logger:   logger.NewNop(),
		DB:       db,
		Producer: producer,
	})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	ctx := context.Background()
	entry := NewEntry(ctx, ActionRestore, EntityCodeUsage, "7").
		WithValues(map[string]any{"state": "deleted"}, map[string]any{"state": "allocated"}).
		WithResult(nil)
	if err := sink.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	rows, err := NewDBSink(db).List(ctx, EntityCodeUsage, "7", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].After["state"] != "allocated" || !rows[0].Success {
		t.Fatalf("unexpected audit rows: %+v", rows)
	}

	if len(producer.msgs) != 1 {
		t.Fatalf("expected one mq message, got %d", len(producer.msgs))
	}
	msg := producer.msgs[0]
	if msg.Topic != "audit-test" || msg.Tag != "restore" || msg.Key != "code_usage:7" {
		t.Fatalf("unexpected message routing: %+v", msg)
	}
	var decoded Entry
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.ID != entry.ID {
		t.Fatalf("unexpected body id: %s", decoded.ID)
	}
}

func TestNewSinkRequiresBackends(t *testing.T) {
	if _, err := NewSink(Params{Config: Config{MQ: true}}); err == nil {
		t.Fatalf("mq sink without producer must fail")
	}
	sink, err := NewSink(Params{})
	if err != nil || sink != Nop {
		t.Fatalf("empty config should yield Nop, got %v %v", sink, err)
	}
}
