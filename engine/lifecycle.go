package engine

import (
	"context"
	"strings"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"
)

/* ========================================================================
 * LifecycleManager - 软删除与恢复
 * ========================================================================
 * planned/allocated --softDelete--> deleted --restore--> allocated
 * 删除写入 deleted=<毫秒时间戳>，记录退出唯一索引的活跃区间
 * 恢复写回 deleted=0，若期间已有同元组的活跃记录，唯一索引拒绝并返回 Conflict
 * ======================================================================== */

// LifecycleManager 生命周期管理
type LifecycleManager struct {
	repos *Repos
	rec   recorder
}

// NewLifecycleManager 创建生命周期管理
func NewLifecycleManager(repos *Repos, sink audit.Sink, log *logger.Logger) *LifecycleManager {
	return &LifecycleManager{repos: repos, rec: newRecorder(sink, log)}
}

// SoftDelete 软删除编码，reason 必填
func (l *LifecycleManager) SoftDelete(ctx context.Context, id int64, reason string) error {
	before, err := l.softDelete(ctx, id, reason)
	metrics.LifecycleTotal.WithLabelValues("soft_delete", metrics.ResultLabel(err)).Inc()
	l.rec.emit(ctx, audit.ActionSoftDelete, audit.EntityCodeUsage, id, before,
		map[string]any{"state": model.StateDeleted, "deletedReason": reason}, err)
	return err
}

func (l *LifecycleManager) softDelete(ctx context.Context, id int64, reason string) (*model.CodeUsage, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "delete reason is required")
	}

	row, err := l.repos.Codes.FindByID(ctx, id, repository.WithUnscoped())
	if err != nil {
		return nil, err
	}
	if !row.State.CanTransit(model.StateDeleted) {
		return row, errors.Newf(errors.ErrCodeInvalidArgument, "code %s is already deleted", row.Model)
	}

	n, err := l.repos.Codes.UpdateWhere(ctx, map[string]any{
		"state":          model.StateDeleted,
		"deleted_reason": reason,
		"deleted":        nowMilli(),
	}, "id = ? AND state IN ?", id, []model.State{model.StatePlanned, model.StateAllocated})
	if err != nil {
		return row, err
	}
	if n == 0 {
		return row, errors.Newf(errors.ErrCodeInvalidArgument, "code %s is already deleted", row.Model)
	}
	return row, nil
}

// Restore 恢复已删除编码为 allocated
// 期间同元组已被占用返回 Conflict；所属编码分类已删除同样拒绝
func (l *LifecycleManager) Restore(ctx context.Context, id int64) (*model.CodeUsage, error) {
	before, after, err := l.restore(ctx, id)
	metrics.LifecycleTotal.WithLabelValues("restore", metrics.ResultLabel(err)).Inc()
	l.rec.emit(ctx, audit.ActionRestore, audit.EntityCodeUsage, id, before, after, err)
	return after, err
}

func (l *LifecycleManager) restore(ctx context.Context, id int64) (*model.CodeUsage, *model.CodeUsage, error) {
	row, err := l.repos.Codes.FindByID(ctx, id, repository.WithUnscoped())
	if err != nil {
		return nil, nil, err
	}
	if row.State != model.StateDeleted {
		return row, nil, errors.Newf(errors.ErrCodeInvalidArgument, "code %s is not deleted", row.Model)
	}
	mc, err := l.repos.Models.FindByID(ctx, row.ModelClassificationID)
	if errors.IsNotFound(err) {
		return row, nil, errors.Newf(errors.ErrCodeConflict, "model type of code %s has been removed", row.Model)
	}
	if err != nil {
		return row, nil, err
	}
	if mc.HasCodeClassification != (row.CodeClassificationNumber != "") {
		return row, nil, errors.Newf(errors.ErrCodeConflict, "code %s does not match the %d-layer structure of %s",
			row.Model, mc.Layers(), mc.Type)
	}
	if row.CodeClassificationID != 0 {
		exists, err := l.repos.CodeClasses.Exists(ctx, "id = ?", row.CodeClassificationID)
		if err != nil {
			return row, nil, err
		}
		if !exists {
			return row, nil, errors.Newf(errors.ErrCodeConflict, "classification of code %s has been removed", row.Model)
		}
	}

	n, err := l.repos.Codes.UpdateWhereWithOpts(ctx, map[string]any{
		"state":          model.StateAllocated,
		"deleted_reason": "",
		"deleted":        0,
	}, "id = ? AND state = ?", []repository.Option{repository.WithUnscoped()}, id, model.StateDeleted)
	if err != nil {
		if errors.IsConflict(err) {
			err = errors.Wrapf(errors.ErrCodeConflict, err, "code %s is held by another active record", row.Model)
		}
		return row, nil, err
	}
	if n == 0 {
		return row, nil, errors.Newf(errors.ErrCodeInvalidArgument, "code %s is not deleted", row.Model)
	}

	after, err := l.repos.Codes.FindByID(ctx, id)
	return row, after, err
}
