package repository

import (
	"context"

	"gorm.io/gorm"
)

/* ========================================================================
 * Transaction Repository Implementation - 事务支持实现
 * ========================================================================
 * 职责: 多仓储共享的事务边界，事务经 context 传递
 * ======================================================================== */

// Execute 在事务中执行 fn
// context 中已有事务时直接复用（嵌套调用并入外层事务）
// fn 返回错误则回滚，业务错误原样向上传递
func (r *RepositoryImpl[T]) Execute(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
	return translateError(err, "transaction failed")
}
