package domain

import "context"

// CartRepository 购物车仓储接口
type CartRepository interface {
	// GetByUserID 获取用户购物车及全部条目，不存在时返回 ErrCartNotFound
	GetByUserID(ctx context.Context, userID uint) (*Cart, error)
	// Create 创建购物车
	Create(ctx context.Context, cart *Cart) error
	// GetItem 获取用户购物车中的条目，校验归属，不存在时返回 ErrItemNotFound
	GetItem(ctx context.Context, userID, itemID uint) (*CartItem, error)
	// SaveItem 新增或更新条目
	SaveItem(ctx context.Context, item *CartItem) error
	// DeleteItem 删除条目
	DeleteItem(ctx context.Context, itemID uint) error
	// Clear 清空用户购物车的全部条目，购物车不存在时不报错
	Clear(ctx context.Context, userID uint) error
}
