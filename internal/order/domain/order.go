// Package domain 包含订单聚合根与订单/支付双状态机
package domain

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyCart 购物车为空，无法下单
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotCancellable 当前状态不允许取消
	ErrNotCancellable = errors.New("order is not cancellable")
	// ErrInvalidStatus 未知的订单状态
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition 不允许的状态迁移
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPaymentAlreadyInProgress 支付已发起或已结束，不能重复创建支付
	ErrPaymentAlreadyInProgress = errors.New("payment already in progress")
	// ErrRefundNotEligible 仅支付完成的订单可退款
	ErrRefundNotEligible = errors.New("order is not eligible for refund")
	// ErrInvalidRefundAmount 退款金额必须大于零且不超过订单总额
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
)

// Status 订单状态
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// PaymentStatus 支付状态，与订单状态相互独立
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// allowedTransitions 订单状态机的合法边
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ValidStatus 目标状态是否为已知状态
func ValidStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Address 地址快照，整体以 JSON 存储在订单行内
type Address struct {
	Recipient  string `json:"recipient"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	Phone      string `json:"phone,omitempty"`
}

// Value 实现 driver.Valuer
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner
func (a *Address) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported address column type %T", value)
	}
}

// Order 订单聚合根
// 创建后金额、条目与地址快照不可变，仅状态字段与时间戳可更新
type Order struct {
	gorm.Model
	OrderNumber     string          `gorm:"column:order_number;type:varchar(32);uniqueIndex;not null" json:"order_number"`
	UserID          uint            `gorm:"column:user_id;index;not null" json:"user_id"`
	Status          Status          `gorm:"column:status;type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"column:payment_status;type:varchar(20);not null;default:'PENDING'" json:"payment_status"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:decimal(10,2);not null" json:"subtotal"`
	TaxAmount       decimal.Decimal `gorm:"column:tax_amount;type:decimal(10,2);not null" json:"tax_amount"`
	ShippingAmount  decimal.Decimal `gorm:"column:shipping_amount;type:decimal(10,2);not null" json:"shipping_amount"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(10,2);not null" json:"total_amount"`
	PaymentMethod   string          `gorm:"column:payment_method;type:varchar(30);not null" json:"payment_method"`
	PaymentIntentID string          `gorm:"column:payment_intent_id;type:varchar(100);index" json:"payment_intent_id,omitempty"`
	ShippingAddress Address         `gorm:"column:shipping_address;type:json" json:"shipping_address"`
	BillingAddress  Address         `gorm:"column:billing_address;type:json" json:"billing_address"`
	Notes           string          `gorm:"column:notes;type:varchar(500)" json:"notes,omitempty"`
	PaidAt          *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ShippedAt       *time.Time      `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 订单条目快照
// 冻结下单时刻的商品名称、SKU、图片与价格，商品后续变更不影响历史订单
type OrderItem struct {
	gorm.Model
	OrderID      uint            `gorm:"column:order_id;index;not null" json:"order_id"`
	ProductID    uint            `gorm:"column:product_id;not null" json:"product_id"`
	ProductName  string          `gorm:"column:product_name;type:varchar(200);not null" json:"product_name"`
	ProductSKU   string          `gorm:"column:product_sku;type:varchar(50);not null" json:"product_sku"`
	ProductImage string          `gorm:"column:product_image;type:varchar(500)" json:"product_image"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	Subtotal     decimal.Decimal `gorm:"column:subtotal;type:decimal(10,2);not null" json:"subtotal"`
}

func (OrderItem) TableName() string { return "order_items" }

// NewOrderNumber 生成订单号：ORD-日期-16位十六进制随机后缀
// 随机部分为 64 位熵，碰撞概率可忽略，数据库唯一索引兜底
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用时进程已不可信任
		panic(fmt.Sprintf("order number generation: %v", err))
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), hex.EncodeToString(buf))
}

// CanCancel 仅待支付或已支付的订单可取消
func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusPaid
}

// Cancel 取消订单，库存返还由应用层在同一事务内完成
// 对已取消订单重复调用返回 ErrNotCancellable
func (o *Order) Cancel() error {
	if !o.CanCancel() {
		return ErrNotCancellable
	}
	o.Status = StatusCancelled
	return nil
}

// ChangeStatus 按状态机迁移订单状态
// 进入 SHIPPED/DELIVERED 时打时间戳，时间戳只写一次，重入同一状态不覆盖
func (o *Order) ChangeStatus(target Status, now time.Time) error {
	if !ValidStatus(target) {
		return ErrInvalidStatus
	}
	if target == o.Status {
		return nil
	}
	if !o.canTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	o.Status = target
	switch target {
	case StatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
	case StatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	return nil
}

func (o *Order) canTransitionTo(target Status) bool {
	for _, next := range allowedTransitions[o.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// BeginPayment 记录支付意图，仅支付状态为 PENDING 时允许
func (o *Order) BeginPayment(intentID, method string, taxAmount, totalAmount decimal.Decimal) error {
	if o.PaymentStatus != PaymentPending {
		return ErrPaymentAlreadyInProgress
	}
	o.PaymentIntentID = intentID
	o.PaymentMethod = method
	o.TaxAmount = taxAmount
	o.TotalAmount = totalAmount
	return nil
}

// CompletePayment 标记支付完成，重复应用为无操作
func (o *Order) CompletePayment(now time.Time) {
	if o.PaymentStatus == PaymentCompleted {
		return
	}
	o.PaymentStatus = PaymentCompleted
	if o.PaidAt == nil {
		o.PaidAt = &now
	}
}

// FailPayment 标记支付失败
// 终态 COMPLETED 不被后续失败事件回退
func (o *Order) FailPayment() {
	if o.PaymentStatus == PaymentCompleted {
		return
	}
	o.PaymentStatus = PaymentFailed
}

// ApplyRefund 应用退款结果
// 全额退款置 REFUNDED，部分退款置 PARTIALLY_REFUNDED，退款不返还库存
func (o *Order) ApplyRefund(amount decimal.Decimal) error {
	if o.PaymentStatus != PaymentCompleted {
		return ErrRefundNotEligible
	}
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(o.TotalAmount) {
		return ErrInvalidRefundAmount
	}
	if amount.Equal(o.TotalAmount) {
		o.PaymentStatus = PaymentRefunded
	} else {
		o.PaymentStatus = PaymentPartiallyRefunded
	}
	return nil
}
