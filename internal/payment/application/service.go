// Package application 实现支付对账的应用服务：支付意图、同步确认、webhook 与退款
package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	orderdomain "github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// webhook 去重键的保留时长
const webhookDedupeTTL = 24 * time.Hour

// WebhookDeduper webhook 事件去重，SetNX 返回 false 表示事件已处理过；
// 事件落库失败时通过 Delete 释放去重键，处理器的重试才不会被当作重复事件
type WebhookDeduper interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// PaymentService 支付应用服务
type PaymentService struct {
	orders    orderdomain.OrderRepository
	tx        orderdomain.TxManager
	fees      *feedomain.FeeTable
	gateway   domain.Gateway
	dedupe    WebhookDeduper
	publisher orderdomain.EventPublisher
	currency  string
}

// NewPaymentService 创建支付应用服务实例
func NewPaymentService(
	orders orderdomain.OrderRepository,
	tx orderdomain.TxManager,
	fees *feedomain.FeeTable,
	gateway domain.Gateway,
	dedupe WebhookDeduper,
	publisher orderdomain.EventPublisher,
	currency string,
) *PaymentService {
	return &PaymentService{
		orders:    orders,
		tx:        tx,
		fees:      fees,
		gateway:   gateway,
		dedupe:    dedupe,
		publisher: publisher,
		currency:  currency,
	}
}

// MethodInfo 支付方式信息
type MethodInfo struct {
	Method   feedomain.PaymentMethod `json:"method"`
	Name     string                  `json:"name"`
	Rate     decimal.Decimal         `json:"rate"`
	FixedFee decimal.Decimal         `json:"fixed_fee"`
}

// Methods 列出可用支付方式及费率
func (s *PaymentService) Methods() []MethodInfo {
	entries := s.fees.Methods()
	out := make([]MethodInfo, 0, len(entries))
	for method, fee := range entries {
		out = append(out, MethodInfo{
			Method:   method,
			Name:     fee.Name,
			Rate:     fee.Rate,
			FixedFee: fee.FixedFee,
		})
	}
	return out
}

// IntentResult 创建支付意图的返回值
type IntentResult struct {
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// CreateIntent 为订单创建支付意图
// 手续费按最终选定的支付方式重算并覆盖订单金额，改价仅在处理器调用成功后落库
func (s *PaymentService) CreateIntent(ctx context.Context, userID, orderID uint, method feedomain.PaymentMethod) (*IntentResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && order.UserID != userID {
		return nil, orderdomain.ErrOrderNotFound
	}
	if order.PaymentStatus != orderdomain.PaymentPending {
		return nil, orderdomain.ErrPaymentAlreadyInProgress
	}

	totals, err := s.fees.OrderTotal(order.Subtotal, order.ShippingAmount, method)
	if err != nil {
		return nil, err
	}

	// 处理器调用在事务之外，失败时订单金额不被改写
	intent, err := s.gateway.CreateIntent(ctx, minorUnits(totals.TotalAmount), s.currency,
		methodTypes(method), map[string]string{
			"order_id":       strconv.FormatUint(uint64(order.ID), 10),
			"order_number":   order.OrderNumber,
			"user_id":        strconv.FormatUint(uint64(order.UserID), 10),
			"payment_method": string(method),
		})
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := s.orders.GetForUpdate(txCtx, order.ID)
		if err != nil {
			return err
		}
		if err := locked.BeginPayment(intent.ID, string(method), totals.TaxAmount, totals.TotalAmount); err != nil {
			return err
		}
		order = locked
		return s.orders.Save(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment intent created",
		"order_id", order.ID,
		"intent_id", intent.ID,
		"method", method,
		"total_amount", totals.TotalAmount,
	)

	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		TaxAmount:    totals.TaxAmount,
		TotalAmount:  totals.TotalAmount,
	}, nil
}

// Confirm 同步确认支付意图并回写支付状态
// succeeded 置 COMPLETED；requires_action 不改状态，等待客户完成挑战；其余置 FAILED
func (s *PaymentService) Confirm(ctx context.Context, intentID, methodID string) (*orderdomain.Order, error) {
	result, err := s.gateway.ConfirmIntent(ctx, intentID, methodID)
	if err != nil {
		return nil, err
	}

	if result.Status == domain.IntentRequiresAction {
		return s.orders.GetByPaymentIntentID(ctx, intentID)
	}

	return s.applyIntentOutcome(ctx, intentID, result.Status == domain.IntentSucceeded)
}

// HandleWebhook 处理处理器回调
// 签名校验失败返回错误；重复事件与无归属事件均为静默成功
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	var claimedKey string
	if s.dedupe != nil && event.ID != "" {
		key := "commerce:webhook:" + event.ID
		fresh, err := s.dedupe.SetNX(ctx, key, 1, webhookDedupeTTL)
		if err != nil {
			// 去重存储不可用时继续处理，状态机终态保证重放无副作用
			logger.Warn(ctx, "webhook dedupe unavailable", "event_id", event.ID, "error", err)
		} else if !fresh {
			logger.Info(ctx, "duplicate webhook event ignored", "event_id", event.ID, "type", event.Type)
			return event, nil
		} else {
			claimedKey = key
		}
	}

	switch event.Type {
	case domain.EventIntentSucceeded:
		_, err = s.applyIntentOutcome(ctx, event.IntentID, true)
	case domain.EventIntentFailed:
		_, err = s.applyIntentOutcome(ctx, event.IntentID, false)
	default:
		// 未订阅的事件类型直接忽略
		return event, nil
	}
	if err != nil {
		if errors.Is(err, orderdomain.ErrOrderNotFound) {
			// 与本系统无关的意图，静默接受
			logger.Info(ctx, "webhook for unknown intent ignored",
				"event_id", event.ID, "intent_id", event.IntentID)
			return event, nil
		}
		// 落库失败时释放去重键，处理器随后的重试不会被吞掉
		s.releaseDedupe(ctx, claimedKey)
		return nil, err
	}
	return event, nil
}

func (s *PaymentService) releaseDedupe(ctx context.Context, key string) {
	if s.dedupe == nil || key == "" {
		return
	}
	if err := s.dedupe.Delete(ctx, key); err != nil {
		logger.Warn(ctx, "failed to release webhook dedupe key", "key", key, "error", err)
	}
}

// RefundResult 退款返回值
type RefundResult struct {
	RefundID      string                    `json:"refund_id"`
	Status        string                    `json:"status"`
	Amount        decimal.Decimal           `json:"amount"`
	PaymentStatus orderdomain.PaymentStatus `json:"payment_status"`
}

// Refund 对已完成支付的订单发起退款
// 全额退款置 REFUNDED，部分退款置 PARTIALLY_REFUNDED，退款不返还库存
func (s *PaymentService) Refund(ctx context.Context, orderID uint, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != orderdomain.PaymentCompleted {
		return nil, orderdomain.ErrRefundNotEligible
	}

	refundAmount := order.TotalAmount
	var gatewayAmount *int64
	if amount != nil {
		if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(order.TotalAmount) {
			return nil, orderdomain.ErrInvalidRefundAmount
		}
		refundAmount = *amount
		minor := minorUnits(refundAmount)
		gatewayAmount = &minor
	}

	refund, err := s.gateway.CreateRefund(ctx, order.PaymentIntentID, gatewayAmount, reason)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := s.orders.GetForUpdate(txCtx, order.ID)
		if err != nil {
			return err
		}
		if err := locked.ApplyRefund(refundAmount); err != nil {
			return err
		}
		order = locked
		return s.orders.Save(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "refund issued",
		"order_id", order.ID,
		"refund_id", refund.ID,
		"amount", refundAmount,
		"payment_status", order.PaymentStatus,
	)
	s.publishStatus(ctx, order)

	return &RefundResult{
		RefundID:      refund.ID,
		Status:        refund.Status,
		Amount:        refundAmount,
		PaymentStatus: order.PaymentStatus,
	}, nil
}

// applyIntentOutcome 将处理器结果落到订单支付状态，重复应用为无操作
func (s *PaymentService) applyIntentOutcome(ctx context.Context, intentID string, succeeded bool) (*orderdomain.Order, error) {
	var (
		order   *orderdomain.Order
		changed bool
	)
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		found, err := s.orders.GetByPaymentIntentID(txCtx, intentID)
		if err != nil {
			return err
		}
		locked, err := s.orders.GetForUpdate(txCtx, found.ID)
		if err != nil {
			return err
		}

		before := locked.PaymentStatus
		if succeeded {
			locked.CompletePayment(time.Now())
		} else {
			locked.FailPayment()
		}
		changed = locked.PaymentStatus != before
		order = locked
		if !changed {
			return nil
		}
		return s.orders.Save(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.Info(ctx, "payment status updated",
			"order_id", order.ID,
			"intent_id", intentID,
			"payment_status", order.PaymentStatus,
		)
		s.publishStatus(ctx, order)
	}
	return order, nil
}

func (s *PaymentService) publishStatus(ctx context.Context, order *orderdomain.Order) {
	if s.publisher == nil {
		return
	}
	event := orderdomain.PaymentStatusChangedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		IntentID:      order.PaymentIntentID,
		Timestamp:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, orderdomain.TopicPaymentStatusChanged, order.OrderNumber, event); err != nil {
		logger.Error(ctx, "failed to publish payment event", "order_id", order.ID, "error", err)
	}
}

// minorUnits 金额转最小货币单位
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// methodTypes 映射到处理器的支付方式类型
func methodTypes(method feedomain.PaymentMethod) []string {
	switch method {
	case feedomain.MethodCreditCard, feedomain.MethodDebitCard:
		return []string{"card"}
	default:
		return []string{string(method)}
	}
}
