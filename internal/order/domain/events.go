package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题
const (
	TopicOrderCreated         = "order.created"
	TopicOrderCancelled       = "order.cancelled"
	TopicOrderStatusChanged   = "order.status.changed"
	TopicPaymentStatusChanged = "order.payment.status.changed"
)

// OrderCreatedEvent 订单创建事件
type OrderCreatedEvent struct {
	OrderID     uint            `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uint            `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

// OrderCancelledEvent 订单取消事件
type OrderCancelledEvent struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uint      `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent 订单状态变更事件
type OrderStatusChangedEvent struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	FromStatus  Status    `json:"from_status"`
	ToStatus    Status    `json:"to_status"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaymentStatusChangedEvent 支付状态变更事件
type PaymentStatusChangedEvent struct {
	OrderID       uint          `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	IntentID      string        `json:"intent_id,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
