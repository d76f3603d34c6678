// Package application 实现购物车的应用服务
package application

import (
	"context"
	"errors"

	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// CartService 购物车应用服务
type CartService struct {
	carts    cartdomain.CartRepository
	products catalogdomain.ProductRepository
}

// NewCartService 创建购物车应用服务实例
func NewCartService(carts cartdomain.CartRepository, products catalogdomain.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetOrCreate 获取用户购物车，不存在时创建空购物车
func (s *CartService) GetOrCreate(ctx context.Context, userID uint) (*cartdomain.Cart, error) {
	cart, err := s.carts.GetByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cartdomain.ErrCartNotFound) {
		return nil, err
	}

	cart = &cartdomain.Cart{UserID: userID}
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, err
	}
	logger.Info(ctx, "cart created", "user_id", userID, "cart_id", cart.ID)
	return cart, nil
}

// AddItem 添加商品到购物车
// 重复添加同一商品时只累加数量，保留首次加入时的快照价格
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*cartdomain.Cart, error) {
	if quantity <= 0 {
		return nil, cartdomain.ErrInvalidQuantity
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Available() {
		return nil, cartdomain.ErrProductUnavailable
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing := cart.FindItem(productID); existing != nil {
		newQuantity := existing.Quantity + quantity
		if !product.InStock(newQuantity) {
			return nil, catalogdomain.ErrInsufficientStock
		}
		existing.Quantity = newQuantity
		if err := s.carts.SaveItem(ctx, existing); err != nil {
			return nil, err
		}
	} else {
		if !product.InStock(quantity) {
			return nil, catalogdomain.ErrInsufficientStock
		}
		item := &cartdomain.CartItem{
			CartID:      cart.ID,
			ProductID:   productID,
			Quantity:    quantity,
			PriceAtTime: product.Price,
		}
		if err := s.carts.SaveItem(ctx, item); err != nil {
			return nil, err
		}
	}

	return s.carts.GetByUserID(ctx, userID)
}

// UpdateItem 修改条目数量，校验条目归属与库存
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*cartdomain.Cart, error) {
	if quantity <= 0 {
		return nil, cartdomain.ErrInvalidQuantity
	}

	item, err := s.carts.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.InStock(quantity) {
		return nil, catalogdomain.ErrInsufficientStock
	}

	item.Quantity = quantity
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	return s.carts.GetByUserID(ctx, userID)
}

// RemoveItem 移除购物车条目，校验条目归属
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) (*cartdomain.Cart, error) {
	item, err := s.carts.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.carts.DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}

	return s.carts.GetByUserID(ctx, userID)
}

// Clear 清空购物车，购物车不存在或已空时也返回成功
func (s *CartService) Clear(ctx context.Context, userID uint) error {
	return s.carts.Clear(ctx, userID)
}
