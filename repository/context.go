package repository

import (
	"context"

	"gorm.io/gorm"
)

/* ========================================================================
 * Transaction Context Helper
 * ========================================================================
 * 职责: 处理 Context 中的事务传递
 * ======================================================================== */

type ctxTxKey struct{}

// ContextWithTx 将事务 DB 绑定到 context
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, ctxTxKey{}, tx)
}

// TxFromContext 读取 context 中的事务 DB
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(ctxTxKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// getDBFromContext 尝试从 context 中获取事务 DB
// 如果 context 中存在事务，返回事务 DB；否则返回原始 DB
// 始终会将 context 绑定到返回的 DB 实例
func getDBFromContext(ctx context.Context, originalDB *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return originalDB.WithContext(ctx)
}

// ContextWithoutTx 屏蔽 context 中的事务，后续仓储调用走独立连接
// 用于审计等不应随业务事务回滚的写入
func ContextWithoutTx(ctx context.Context) context.Context {
	if _, ok := TxFromContext(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, ctxTxKey{}, (*gorm.DB)(nil))
}
