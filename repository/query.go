package repository

import (
	"context"

	"gorm.io/gorm"
)

/* ========================================================================
 * Query Repository Implementation - 查询操作实现
 * ========================================================================
 * 职责: 实现 QueryRepository 接口
 * ======================================================================== */

// buildQuery 构建查询
func (r *RepositoryImpl[T]) buildQuery(ctx context.Context, opts *QueryOption) *gorm.DB {
	db := r.withContext(ctx)
	if opts == nil {
		return db
	}

	if opts.Unscoped {
		db = db.Unscoped()
	}
	if opts.OrderBy != "" {
		db = db.Order(opts.OrderBy)
	}
	if opts.Limit > 0 {
		db = db.Limit(opts.Limit)
	}
	return db
}

/* ========================================================================
 * FindByID 操作
 * ======================================================================== */

// FindByID 根据 ID 查找记录
func (r *RepositoryImpl[T]) FindByID(ctx context.Context, id int64, opts ...Option) (*T, error) {
	model := r.newModelPtr()
	if err := r.buildQuery(ctx, ApplyOptions(opts)).Where("id = ?", id).First(model).Error; err != nil {
		return nil, translateError(err, "failed to find record")
	}
	return model, nil
}

/* ========================================================================
 * FindOne 操作
 * ======================================================================== */

// FindOne 查找单条记录（使用自定义条件）
func (r *RepositoryImpl[T]) FindOne(ctx context.Context, query string, args ...any) (*T, error) {
	return r.FindOneWithOpts(ctx, query, nil, args...)
}

// FindOneWithOpts 查找单条记录（带选项）
func (r *RepositoryImpl[T]) FindOneWithOpts(ctx context.Context, query string, opts []Option, args ...any) (*T, error) {
	model := r.newModelPtr()
	db := r.buildQuery(ctx, ApplyOptions(opts))
	if query != "" {
		db = db.Where(query, args...)
	}
	if err := db.First(model).Error; err != nil {
		return nil, translateError(err, "failed to find record")
	}
	return model, nil
}

/* ========================================================================
 * FindByQuery 操作
 * ======================================================================== */

// FindByQueryWithOpts 查找多条记录（带选项）
func (r *RepositoryImpl[T]) FindByQueryWithOpts(ctx context.Context, query string, opts []Option, args ...any) ([]*T, error) {
	var models []*T
	db := r.buildQuery(ctx, ApplyOptions(opts))
	if query != "" {
		db = db.Where(query, args...)
	}
	if err := db.Find(&models).Error; err != nil {
		return nil, translateError(err, "failed to find records")
	}
	return models, nil
}

/* ========================================================================
 * Count/Exists 操作
 * ======================================================================== */

// Count 统计记录数
func (r *RepositoryImpl[T]) Count(ctx context.Context, query string, args ...any) (int64, error) {
	return r.CountWithOpts(ctx, query, nil, args...)
}

// CountWithOpts 统计记录数（带选项，如 Unscoped）
func (r *RepositoryImpl[T]) CountWithOpts(ctx context.Context, query string, opts []Option, args ...any) (int64, error) {
	var count int64
	db := r.buildQuery(ctx, &QueryOption{Unscoped: ApplyOptions(opts).Unscoped}).Model(r.newModelPtr())
	if query != "" {
		db = db.Where(query, args...)
	}
	if err := db.Count(&count).Error; err != nil {
		return 0, translateError(err, "failed to count records")
	}
	return count, nil
}

// Exists 检查记录是否存在
func (r *RepositoryImpl[T]) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	return r.ExistsWithOpts(ctx, query, nil, args...)
}

// ExistsWithOpts 检查记录是否存在（带选项）
func (r *RepositoryImpl[T]) ExistsWithOpts(ctx context.Context, query string, opts []Option, args ...any) (bool, error) {
	count, err := r.CountWithOpts(ctx, query, opts, args...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
