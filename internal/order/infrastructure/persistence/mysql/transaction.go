package mysql

import (
	"context"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

// TransactionManager 基于 gorm 的事务管理器
// 事务句柄通过 context 下发，各仓储的 getDB 自动复用同一事务
type TransactionManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器实例
func NewTransactionManager(db *gorm.DB) domain.TxManager {
	return &TransactionManager{db: db}
}

// Transaction 在单个数据库事务内执行 fn，fn 返回错误时整体回滚
func (m *TransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}
