// Package application 实现订单的应用服务：下单、取消与状态流转
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// CheckoutCommand 下单命令
type CheckoutCommand struct {
	UserID          uint
	PaymentMethod   feedomain.PaymentMethod
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	Notes           string
}

// OrderService 订单命令服务
type OrderService struct {
	orders    domain.OrderRepository
	carts     cartdomain.CartRepository
	products  catalogdomain.ProductRepository
	fees      *feedomain.FeeTable
	tx        domain.TxManager
	publisher domain.EventPublisher
}

// NewOrderService 创建订单命令服务实例
func NewOrderService(
	orders domain.OrderRepository,
	carts cartdomain.CartRepository,
	products catalogdomain.ProductRepository,
	fees *feedomain.FeeTable,
	tx domain.TxManager,
	publisher domain.EventPublisher,
) *OrderService {
	return &OrderService{
		orders:    orders,
		carts:     carts,
		products:  products,
		fees:      fees,
		tx:        tx,
		publisher: publisher,
	}
}

// Checkout 结算购物车生成订单
// 订单创建、条目快照、库存扣减与清空购物车在同一事务内完成，任一步失败整体回滚
func (s *OrderService) Checkout(ctx context.Context, cmd CheckoutCommand) (*domain.Order, error) {
	if !s.fees.Supports(cmd.PaymentMethod) {
		return nil, feedomain.ErrUnsupportedPaymentMethod
	}

	billing := cmd.ShippingAddress
	if cmd.BillingAddress != nil {
		billing = *cmd.BillingAddress
	}

	var order *domain.Order
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		cart, err := s.carts.GetByUserID(txCtx, cmd.UserID)
		if err != nil {
			if errors.Is(err, cartdomain.ErrCartNotFound) {
				return domain.ErrEmptyCart
			}
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		items := make([]domain.OrderItem, 0, len(cart.Items))
		for i := range cart.Items {
			cartItem := &cart.Items[i]

			// 行锁商品后扣库存，两个并发结算不能同时消费最后一件库存
			product, err := s.products.GetForUpdate(txCtx, cartItem.ProductID)
			if err != nil {
				return err
			}
			if !product.InStock(cartItem.Quantity) {
				return fmt.Errorf("%w: %s", catalogdomain.ErrInsufficientStock, product.Name)
			}
			if err := s.products.DebitStock(txCtx, product.ID, cartItem.Quantity); err != nil {
				return err
			}

			items = append(items, domain.OrderItem{
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductSKU:   product.SKU,
				ProductImage: product.MainImage,
				Price:        cartItem.PriceAtTime,
				Quantity:     cartItem.Quantity,
				Subtotal:     cartItem.Subtotal(),
			})
		}

		// 运费固定为零的免邮策略
		totals, err := s.fees.OrderTotal(cart.Total(), decimal.Zero, cmd.PaymentMethod)
		if err != nil {
			return err
		}

		order = &domain.Order{
			OrderNumber:     domain.NewOrderNumber(time.Now()),
			UserID:          cmd.UserID,
			Status:          domain.StatusPending,
			PaymentStatus:   domain.PaymentPending,
			Subtotal:        totals.Subtotal,
			TaxAmount:       totals.TaxAmount,
			ShippingAmount:  totals.ShippingAmount,
			TotalAmount:     totals.TotalAmount,
			PaymentMethod:   string(cmd.PaymentMethod),
			ShippingAddress: cmd.ShippingAddress,
			BillingAddress:  billing,
			Notes:           cmd.Notes,
			Items:           items,
		}
		if err := s.orders.Create(txCtx, order); err != nil {
			return err
		}

		return s.carts.Clear(txCtx, cmd.UserID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", cmd.UserID,
		"total_amount", order.TotalAmount,
	)
	s.publish(ctx, domain.TopicOrderCreated, order.OrderNumber, domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		Timestamp:   time.Now(),
	})

	return order, nil
}

// Cancel 取消订单并返还库存
// 仅 PENDING/PAID 可取消，商品已被删除时跳过该条目的返还
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uint) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && order.UserID != userID {
			return domain.ErrOrderNotFound
		}

		if err := order.Cancel(); err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			if err := s.products.CreditStock(txCtx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, catalogdomain.ErrProductNotFound) {
					logger.Warn(txCtx, "skip restock for missing product",
						"order_id", order.ID, "product_id", item.ProductID)
					continue
				}
				return err
			}
		}

		return s.orders.Save(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order cancelled", "order_id", order.ID, "order_number", order.OrderNumber)
	s.publish(ctx, domain.TopicOrderCancelled, order.OrderNumber, domain.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Timestamp:   time.Now(),
	})

	return order, nil
}

// UpdateStatus 管理端推进订单状态
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target domain.Status) (*domain.Order, error) {
	var (
		order *domain.Order
		from  domain.Status
	)
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}

		from = order.Status
		if err := order.ChangeStatus(target, time.Now()); err != nil {
			return err
		}

		return s.orders.Save(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	if from != order.Status {
		s.publish(ctx, domain.TopicOrderStatusChanged, order.OrderNumber, domain.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			FromStatus:  from,
			ToStatus:    order.Status,
			Timestamp:   time.Now(),
		})
	}

	return order, nil
}

// publish 事件发布失败只记日志，不影响主流程
func (s *OrderService) publish(ctx context.Context, topic, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		logger.Error(ctx, "failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
