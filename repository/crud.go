package repository

import (
	"context"
	"sync"

	"github.com/aisgo/ais-modelcode/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

/* ========================================================================
 * CRUD Repository Implementation - CRUD 操作实现
 * ========================================================================
 * 职责: 实现 CRUDRepository 接口
 *
 * 使用示例:
 *   repo := repository.NewRepository[model.CodeUsage](db)
 *
 *   // 条件更新：只有仍处于 planned 的槽位会被翻转
 *   n, err := repo.UpdateWhere(ctx, map[string]any{"state": "allocated"},
 *       "id = ? AND state = ?", id, "planned")
 *
 *   // 事务：txCtx 内的所有仓储调用共享同一事务
 *   err = repo.Execute(ctx, func(txCtx context.Context) error {
 *       return repo.CreateBatch(txCtx, slots, 100)
 *   })
 * ======================================================================== */

const (
	// DefaultBatchSize 默认批量操作大小
	DefaultBatchSize = 100
)

// RepositoryImpl 仓储实现
type RepositoryImpl[T any] struct {
	db *gorm.DB

	// Schema 缓存（线程安全）
	schemaOnce sync.Once
	schema     *schema.Schema
	schemaErr  error
}

// NewRepository 创建新的仓储实例
func NewRepository[T any](db *gorm.DB) Repository[T] {
	return &RepositoryImpl[T]{db: db}
}

// GetDB 获取底层 GORM DB 实例
func (r *RepositoryImpl[T]) GetDB() *gorm.DB {
	return r.db
}

func (r *RepositoryImpl[T]) newModelPtr() *T {
	var model T
	return &model
}

// withContext 返回带 context 的 DB (自动识别事务)
func (r *RepositoryImpl[T]) withContext(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, r.db)
}

// getSchema 获取缓存的 Schema（线程安全）
func (r *RepositoryImpl[T]) getSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		r.schemaErr = stmt.Parse(r.newModelPtr())
		if r.schemaErr == nil {
			r.schema = stmt.Schema
		}
	})
	return r.schema, r.schemaErr
}

/* ========================================================================
 * Create 操作
 * ======================================================================== */

// Create 创建单条记录
func (r *RepositoryImpl[T]) Create(ctx context.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}
	return translateError(r.withContext(ctx).Create(model).Error, "failed to create record")
}

// CreateBatch 批量创建记录
func (r *RepositoryImpl[T]) CreateBatch(ctx context.Context, models []*T, batchSize int) error {
	if len(models) == 0 {
		return errors.ErrInvalidArgument
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	validModels := make([]*T, 0, len(models))
	for _, m := range models {
		if m != nil {
			validModels = append(validModels, m)
		}
	}
	if len(validModels) == 0 {
		return nil
	}

	return translateError(r.withContext(ctx).CreateInBatches(validModels, batchSize).Error, "failed to create records")
}

/* ========================================================================
 * Update 操作
 * ======================================================================== */

// UpdateByID 根据 ID 更新指定字段
func (r *RepositoryImpl[T]) UpdateByID(ctx context.Context, id int64, updates map[string]any, allowedFields ...string) error {
	if len(updates) == 0 {
		return errors.ErrInvalidArgument
	}

	// 过滤非法字段，防止注入/批量赋值漏洞
	filtered, err := r.filterUpdates(updates, allowedFields)
	if err != nil {
		return translateError(err, "failed to parse schema")
	}
	if len(filtered) == 0 {
		return errors.ErrInvalidArgument
	}

	result := r.withContext(ctx).Model(r.newModelPtr()).Where("id = ?", id).Updates(filtered)
	if result.Error != nil {
		return translateError(result.Error, "failed to update record")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "record not found")
	}
	return nil
}

// UpdateWhere 条件更新，返回受影响行数
func (r *RepositoryImpl[T]) UpdateWhere(ctx context.Context, updates map[string]any, query string, args ...any) (int64, error) {
	return r.UpdateWhereWithOpts(ctx, updates, query, nil, args...)
}

// UpdateWhereWithOpts 条件更新（带选项）
// 软删除插件会自动追加 deleted = 0 条件，WithUnscoped 可跳过
func (r *RepositoryImpl[T]) UpdateWhereWithOpts(ctx context.Context, updates map[string]any, query string, opts []Option, args ...any) (int64, error) {
	if len(updates) == 0 || query == "" {
		return 0, errors.ErrInvalidArgument
	}

	db := r.withContext(ctx)
	if ApplyOptions(opts).Unscoped {
		db = db.Unscoped()
	}

	result := db.Model(r.newModelPtr()).Where(query, args...).Updates(updates)
	if result.Error != nil {
		return 0, translateError(result.Error, "failed to update records")
	}
	return result.RowsAffected, nil
}

// filterUpdates 过滤掉 map 中非法的数据库列名，防止字段注入/批量赋值漏洞
func (r *RepositoryImpl[T]) filterUpdates(updates map[string]any, allowedFields []string) (map[string]any, error) {
	schema, err := r.getSchema()
	if err != nil {
		return nil, err
	}

	allowedSet := make(map[string]struct{}, len(allowedFields))
	for _, f := range allowedFields {
		allowedSet[f] = struct{}{}
	}
	hasWhitelist := len(allowedSet) > 0

	filtered := make(map[string]any, len(updates))
	for k, v := range updates {
		if hasWhitelist {
			if _, ok := allowedSet[k]; !ok {
				continue
			}
		}

		// 优先匹配数据库列名 (DB Name)
		if field, ok := schema.FieldsByDBName[k]; ok {
			if !field.PrimaryKey && field.Updatable {
				filtered[k] = v
			}
			continue
		}
		// 尝试匹配结构体字段名 (Struct Field Name)
		if field, ok := schema.FieldsByName[k]; ok {
			if !field.PrimaryKey && field.Updatable {
				filtered[field.DBName] = v
			}
		}
	}

	return filtered, nil
}

/* ========================================================================
 * Delete 操作
 * ======================================================================== */

// Delete 软删除记录
func (r *RepositoryImpl[T]) Delete(ctx context.Context, id int64) error {
	result := r.withContext(ctx).Delete(r.newModelPtr(), "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error, "failed to delete record")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "record not found")
	}
	return nil
}
