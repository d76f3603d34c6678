package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/ecommerce/internal/cart/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储实例
func NewCartRepository(db *gorm.DB) domain.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *cartRepository) GetByUserID(ctx context.Context, userID uint) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.getDB(ctx).WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	return r.getDB(ctx).WithContext(ctx).Create(cart).Error
}

// GetItem 通过 JOIN 购物车表校验条目归属
func (r *cartRepository) GetItem(ctx context.Context, userID, itemID uint) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.getDB(ctx).WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) SaveItem(ctx context.Context, item *domain.CartItem) error {
	return r.getDB(ctx).WithContext(ctx).Save(item).Error
}

func (r *cartRepository) DeleteItem(ctx context.Context, itemID uint) error {
	return r.getDB(ctx).WithContext(ctx).Delete(&domain.CartItem{}, itemID).Error
}

func (r *cartRepository) Clear(ctx context.Context, userID uint) error {
	return r.getDB(ctx).WithContext(ctx).
		Where("cart_id IN (?)", r.getDB(ctx).Model(&domain.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&domain.CartItem{}).Error
}
