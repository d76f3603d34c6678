// Package domain 定义外部支付处理器的窄接口与支付领域错误
package domain

import (
	"context"
	"errors"
)

var (
	// ErrGateway 处理器调用失败或返回了不可解析的结果
	ErrGateway = errors.New("payment gateway error")
	// ErrInvalidSignature webhook 签名校验失败
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload webhook 负载不可解析
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// 处理器侧的支付意图状态
const (
	IntentSucceeded      = "succeeded"
	IntentRequiresAction = "requires_action"
)

// webhook 事件类型
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Intent 创建支付意图的结果
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// ConfirmResult 确认支付意图的结果
type ConfirmResult struct {
	Status         string
	AmountReceived int64
}

// Refund 退款结果
type Refund struct {
	ID     string
	Status string
	Amount int64
}

// WebhookEvent 经过签名校验的 webhook 事件
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
}

// Gateway 外部支付处理器接口，金额一律为最小货币单位
type Gateway interface {
	// CreateIntent 创建支付意图
	CreateIntent(ctx context.Context, amount int64, currency string, methodTypes []string, metadata map[string]string) (*Intent, error)
	// ConfirmIntent 确认支付意图，methodID 可为空
	ConfirmIntent(ctx context.Context, intentID, methodID string) (*ConfirmResult, error)
	// CreateRefund 创建退款，amount 为 nil 时全额退款
	CreateRefund(ctx context.Context, intentID string, amount *int64, reason string) (*Refund, error)
	// VerifyWebhook 校验签名并解析事件
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
