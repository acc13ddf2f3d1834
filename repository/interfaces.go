package repository

import (
	"context"

	"gorm.io/gorm"
)

/* ========================================================================
 * Repository Interfaces - 仓储接口定义
 * ========================================================================
 * 职责: 定义通用仓储接口
 * 设计: 使用泛型提供类型安全的数据访问，主键统一为 int64（雪花 ID）
 * ======================================================================== */

// QueryOption 查询选项
type QueryOption struct {
	// OrderBy 排序（如 "actual_number ASC"），调用方需先经 ValidateOrderBy 校验
	OrderBy string
	// Limit 限制条数，<=0 不限制
	Limit int
	// Unscoped 包含已软删除记录
	Unscoped bool
}

// Option 应用查询选项
type Option func(*QueryOption)

// WithOrderBy 设置排序
func WithOrderBy(orderBy string) Option {
	return func(o *QueryOption) {
		o.OrderBy = orderBy
	}
}

// WithLimit 设置条数上限
func WithLimit(limit int) Option {
	return func(o *QueryOption) {
		o.Limit = limit
	}
}

// WithUnscoped 包含已软删除的记录
func WithUnscoped() Option {
	return func(o *QueryOption) {
		o.Unscoped = true
	}
}

// ApplyOptions 应用查询选项
func ApplyOptions(opts []Option) *QueryOption {
	o := &QueryOption{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// PageResult 分页结果
type PageResult[T any] struct {
	List     []T   `json:"list" doc:"数据列表"`
	Total    int64 `json:"total" doc:"总记录数"`
	Page     int   `json:"page" doc:"当前页码"`
	PageSize int   `json:"pageSize" doc:"每页大小"`
	Pages    int64 `json:"pages" doc:"总页数"`
}

// CRUDRepository CRUD 操作接口
type CRUDRepository[T any] interface {
	// Create 创建单条记录，唯一键冲突返回 Conflict
	Create(ctx context.Context, model *T) error

	// CreateBatch 批量创建记录
	CreateBatch(ctx context.Context, models []*T, batchSize int) error

	// UpdateByID 根据 ID 更新指定字段（白名单过滤）
	UpdateByID(ctx context.Context, id int64, updates map[string]any, allowedFields ...string) error

	// UpdateWhere 条件更新，返回受影响行数；不做字段白名单过滤，仅供仓储内部语义调用
	UpdateWhere(ctx context.Context, updates map[string]any, query string, args ...any) (int64, error)

	// UpdateWhereWithOpts 条件更新（带选项，如 Unscoped）
	UpdateWhereWithOpts(ctx context.Context, updates map[string]any, query string, opts []Option, args ...any) (int64, error)

	// Delete 软删除记录
	Delete(ctx context.Context, id int64) error
}

// QueryRepository 查询操作接口
type QueryRepository[T any] interface {
	// FindByID 根据 ID 查找记录
	FindByID(ctx context.Context, id int64, opts ...Option) (*T, error)

	// FindOne 查找单条记录（使用自定义条件）
	FindOne(ctx context.Context, query string, args ...any) (*T, error)

	// FindOneWithOpts 查找单条记录（带选项）
	FindOneWithOpts(ctx context.Context, query string, opts []Option, args ...any) (*T, error)

	// FindByQueryWithOpts 查找多条记录（带选项）
	FindByQueryWithOpts(ctx context.Context, query string, opts []Option, args ...any) ([]*T, error)

	// Count 统计记录数
	Count(ctx context.Context, query string, args ...any) (int64, error)

	// CountWithOpts 统计记录数（带选项，排序与条数上限不生效）
	CountWithOpts(ctx context.Context, query string, opts []Option, args ...any) (int64, error)

	// Exists 检查记录是否存在
	Exists(ctx context.Context, query string, args ...any) (bool, error)

	// ExistsWithOpts 检查记录是否存在（带选项）
	ExistsWithOpts(ctx context.Context, query string, opts []Option, args ...any) (bool, error)
}

// PageRepository 分页查询接口
type PageRepository[T any] interface {
	// FindPageWithOpts 分页查询（带选项）
	FindPageWithOpts(ctx context.Context, page, pageSize int, query string, opts []Option, args ...any) (*PageResult[T], error)
}

// AggregateRepository 聚合查询接口
type AggregateRepository[T any] interface {
	// CountByGroup 分组计数
	CountByGroup(ctx context.Context, groupColumn, query string, args ...any) (map[string]int64, error)
}

// TransactionRepository 事务支持接口
type TransactionRepository[T any] interface {
	// Execute 在事务中执行 fn，事务通过 txCtx 传递给同一 DB 上的所有仓储
	Execute(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Repository 通用仓储接口
// 组合了所有子接口
type Repository[T any] interface {
	CRUDRepository[T]
	QueryRepository[T]
	PageRepository[T]
	AggregateRepository[T]
	TransactionRepository[T]

	// GetDB 获取底层 GORM DB 实例（用于复杂查询）
	GetDB() *gorm.DB
}
