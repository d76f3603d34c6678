// Package domain 包含商品目录的领域模型
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock 库存不足
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product 商品实体
// 本服务只消费商品的读取与库存增减，目录维护由上游负责
type Product struct {
	gorm.Model
	Name          string          `gorm:"column:name;type:varchar(200);not null" json:"name"`
	SKU           string          `gorm:"column:sku;type:varchar(50);uniqueIndex;not null" json:"sku"`
	Price         decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	MainImage     string          `gorm:"column:main_image;type:varchar(500)" json:"main_image"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (Product) TableName() string { return "products" }

// InStock 检查库存是否足够
func (p *Product) InStock(quantity int) bool {
	return p.StockQuantity >= quantity
}

// Available 商品是否可加入购物车
func (p *Product) Available() bool {
	return p.IsActive
}

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// Get 获取商品
	Get(ctx context.Context, id uint) (*Product, error)
	// GetForUpdate 获取商品并对行加锁，必须在事务内调用
	GetForUpdate(ctx context.Context, id uint) (*Product, error)
	// DebitStock 扣减库存，库存不足时返回 ErrInsufficientStock 且不产生任何变更
	DebitStock(ctx context.Context, id uint, quantity int) error
	// CreditStock 返还库存，商品不存在时返回 ErrProductNotFound
	CreditStock(ctx context.Context, id uint, quantity int) error
}
