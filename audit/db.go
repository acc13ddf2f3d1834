package audit

import (
	"context"
	"fmt"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"

	"gorm.io/gorm"
)

// DBSink 写入 audit_logs 表，快照以 JSON 列保存
type DBSink struct {
	repo repository.Repository[model.AuditLog]
}

func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{repo: repository.NewRepository[model.AuditLog](db)}
}

func (s *DBSink) Record(ctx context.Context, e Entry) error {
	before, err := database.ToJSONB(e.Before)
	if err != nil {
		return fmt.Errorf("encode audit before: %w", err)
	}
	after, err := database.ToJSONB(e.After)
	if err != nil {
		return fmt.Errorf("encode audit after: %w", err)
	}

	row := &model.AuditLog{
		ID:         e.ID,
		Action:     string(e.Action),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     before,
		After:      after,
		Success:    e.Success,
		Message:    e.Message,
		Operator:   e.Operator,
		RequestID:  e.RequestID,
		CreatedAt:  e.At,
	}
	// 审计不随业务事务回滚
	return s.repo.Create(repository.ContextWithoutTx(ctx), row)
}

// List 按实体查询审计记录，最新在前
func (s *DBSink) List(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	return s.repo.FindByQueryWithOpts(ctx, "entity_type = ? AND entity_id = ?",
		[]repository.Option{repository.WithOrderBy("created_at DESC"), repository.WithLimit(limit)},
		entityType, entityID)
}
