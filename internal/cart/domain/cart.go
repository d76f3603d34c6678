// Package domain 包含购物车的领域模型
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrCartNotFound 购物车不存在
	ErrCartNotFound = errors.New("cart not found")
	// ErrItemNotFound 购物车条目不存在或不属于该用户
	ErrItemNotFound = errors.New("cart item not found")
	// ErrProductUnavailable 商品已下架
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrInvalidQuantity 数量必须为正数
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Cart 购物车聚合根，每个用户唯一
type Cart struct {
	gorm.Model
	UserID uint       `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID" json:"items"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 购物车条目
// PriceAtTime 为加入购物车时的快照价格，重复加入同一商品只累加数量不刷新价格。
// 条目为物理删除，软删除的残留行会占住 (cart_id, product_id) 唯一索引
type CartItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CartID      uint            `gorm:"column:cart_id;uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID   uint            `gorm:"column:product_id;uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	PriceAtTime decimal.Decimal `gorm:"column:price_at_time;type:decimal(10,2);not null" json:"price_at_time"`
}

func (CartItem) TableName() string { return "cart_items" }

// Subtotal 条目小计
func (i *CartItem) Subtotal() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total 购物车总金额，按快照价格汇总
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].Subtotal())
	}
	return total
}

// ItemsCount 商品件数合计
func (c *Cart) ItemsCount() int {
	count := 0
	for i := range c.Items {
		count += c.Items[i].Quantity
	}
	return count
}

// IsEmpty 购物车是否为空
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem 按商品查找条目
func (c *Cart) FindItem(productID uint) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
