package application

import (
	"context"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
)

// OrderQueryService 订单查询服务
type OrderQueryService struct {
	orders domain.OrderRepository
}

// NewOrderQueryService 创建订单查询服务实例
func NewOrderQueryService(orders domain.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orders: orders}
}

// Get 获取用户订单详情，userID 为 0 时跳过归属校验（管理端）
func (s *OrderQueryService) Get(ctx context.Context, userID, orderID uint) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetByNumber 按订单号获取订单
func (s *OrderQueryService) GetByNumber(ctx context.Context, userID uint, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if userID != 0 && order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByUser 分页查询用户订单
func (s *OrderQueryService) ListByUser(ctx context.Context, userID uint, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	filter.UserID = userID
	return s.orders.List(ctx, normalize(filter))
}

// AdminList 管理端按条件分页查询订单
func (s *OrderQueryService) AdminList(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	return s.orders.List(ctx, normalize(filter))
}

func normalize(filter domain.ListFilter) domain.ListFilter {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	return filter
}
