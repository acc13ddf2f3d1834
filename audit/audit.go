package audit

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/utils/id-generator/ulid"
)

/* ========================================================================
 * Audit - 审计记录
 * ========================================================================
 * 职责: 定义审计条目与落地接口（日志 / 数据库 / 消息队列）
 * 约定: 审计失败只记录日志，不影响业务结果
 * ======================================================================== */

// Action 审计动作
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionPreallocate Action = "preallocate"
	ActionAllocate    Action = "allocate"
	ActionSoftDelete  Action = "soft_delete"
	ActionRestore     Action = "restore"
)

// 实体类型
const (
	EntityProductType         = "product_type"
	EntityModelClassification = "model_classification"
	EntityCodeClassification  = "code_classification"
	EntityCodeUsage           = "code_usage"
)

// Entry 审计条目
type Entry struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Before     any       `json:"before,omitempty"`
	After      any       `json:"after,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Operator   string    `json:"operator,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	At         time.Time `json:"at"`
}

// NewEntry 创建审计条目，操作人与请求 ID 取自 context
func NewEntry(ctx context.Context, action Action, entityType, entityID string) Entry {
	return Entry{
		ID:         ulid.GenerateString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Operator:   logger.OperatorFromContext(ctx),
		RequestID:  logger.RequestIDFromContext(ctx),
		At:         time.Now(),
	}
}

// WithValues 设置变更前后快照
func (e Entry) WithValues(before, after any) Entry {
	e.Before = before
	e.After = after
	return e
}

// WithResult 根据业务错误设置结果
func (e Entry) WithResult(err error) Entry {
	e.Success = err == nil
	if err != nil {
		e.Message = errors.Message(err)
	}
	return e
}

// Sink 审计落地接口
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// SinkFunc 函数适配
type SinkFunc func(ctx context.Context, entry Entry) error

func (f SinkFunc) Record(ctx context.Context, entry Entry) error { return f(ctx, entry) }

// MultiSink 依次写入所有 Sink，汇总错误
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

type nopSink struct{}

func (nopSink) Record(context.Context, Entry) error { return nil }

// Nop 丢弃审计
var Nop Sink = nopSink{}
