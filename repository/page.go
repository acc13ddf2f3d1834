package repository

import (
	"context"
	"database/sql"
	"math"

	"gorm.io/gorm"
)

/* ========================================================================
 * Page Repository Implementation - 分页查询实现
 * ========================================================================
 * 职责: 实现 PageRepository 接口
 * ======================================================================== */

const (
	// DefaultPageSize 默认每页条数
	DefaultPageSize = 20
	// MaxPageSize 每页条数上限
	MaxPageSize = 1000
)

// NormalizePage 规范化分页参数
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// FindPageWithOpts 分页查询（带选项）
func (r *RepositoryImpl[T]) FindPageWithOpts(ctx context.Context, page, pageSize int, query string, opts []Option, args ...any) (*PageResult[T], error) {
	page, pageSize = NormalizePage(page, pageSize)
	opt := ApplyOptions(opts)

	return r.findPageWithSnapshot(ctx, opt, page, pageSize, func(db *gorm.DB) *gorm.DB {
		if query != "" {
			return db.Where(query, args...)
		}
		return db
	})
}

// findPageWithSnapshot 在同一只读快照内完成计数与取数，保证 total 与 list 一致
func (r *RepositoryImpl[T]) findPageWithSnapshot(ctx context.Context, opt *QueryOption, page, pageSize int, apply func(*gorm.DB) *gorm.DB) (*PageResult[T], error) {
	if _, ok := TxFromContext(ctx); ok {
		return r.findPageWithDB(apply(r.buildQuery(ctx, opt)), page, pageSize)
	}

	var result *PageResult[T]
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := apply(r.buildQuery(ContextWithTx(ctx, tx), opt))
		var err error
		result, err = r.findPageWithDB(query, page, pageSize)
		return err
	}, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
	})
	if err != nil {
		return nil, translateError(err, "failed to page records")
	}
	return result, nil
}

func (r *RepositoryImpl[T]) findPageWithDB(db *gorm.DB, page, pageSize int) (*PageResult[T], error) {
	var total int64
	if err := db.Session(&gorm.Session{}).Model(r.newModelPtr()).Limit(-1).Count(&total).Error; err != nil {
		return nil, translateError(err, "failed to count records")
	}

	list := make([]T, 0, pageSize)
	offset := (page - 1) * pageSize
	if err := db.Session(&gorm.Session{}).Offset(offset).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, translateError(err, "failed to find records")
	}

	pages := int64(math.Ceil(float64(total) / float64(pageSize)))
	return &PageResult[T]{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}
