package domain

import (
	"context"
	"time"
)

// ListFilter 订单列表查询条件
type ListFilter struct {
	UserID        uint
	Status        Status
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 持久化订单及其条目
	Create(ctx context.Context, order *Order) error
	// Get 获取订单及条目，不存在时返回 ErrOrderNotFound
	Get(ctx context.Context, id uint) (*Order, error)
	// GetForUpdate 获取订单并对行加锁，必须在事务内调用
	GetForUpdate(ctx context.Context, id uint) (*Order, error)
	// GetByNumber 按订单号获取订单
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	// GetByPaymentIntentID 按支付意图查找订单，不存在时返回 ErrOrderNotFound
	GetByPaymentIntentID(ctx context.Context, intentID string) (*Order, error)
	// Save 保存订单状态字段的变更
	Save(ctx context.Context, order *Order) error
	// List 按条件分页查询订单，返回结果与总数
	List(ctx context.Context, filter ListFilter) ([]*Order, int64, error)
}

// TxManager 事务边界
// fn 内通过 context 传递事务句柄，fn 返回错误时整体回滚
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
