// Package http 支付的 HTTP 接口层，含处理器 webhook 入口
package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	orderdomain "github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/payment/application"
	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/pkg/response"
)

// webhook 请求体大小上限
const maxWebhookBody = 1 << 20

// PaymentHandler 支付 HTTP 处理器
type PaymentHandler struct {
	app     *application.PaymentService
	metrics *metrics.Metrics
}

// NewPaymentHandler 创建支付 HTTP 处理器实例
func NewPaymentHandler(app *application.PaymentService, m *metrics.Metrics) *PaymentHandler {
	return &PaymentHandler{app: app, metrics: m}
}

// RegisterRoutes 注册路由
func (h *PaymentHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/payments")
	{
		api.GET("/methods", h.ListMethods)
		api.POST("/intent", h.CreateIntent)
		api.POST("/confirm", h.Confirm)
		api.POST("/webhook", h.Webhook)
	}

	admin := router.Group("/api/v1/admin/payments")
	{
		admin.POST("/orders/:id/refund", h.Refund)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, feedomain.ErrUnsupportedPaymentMethod),
		errors.Is(err, orderdomain.ErrInvalidRefundAmount),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, orderdomain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, orderdomain.ErrPaymentAlreadyInProgress),
		errors.Is(err, orderdomain.ErrRefundNotEligible):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "missing or invalid user identity", "")
		return 0, false
	}
	return uint(id), true
}

// ListMethods 列出支付方式及费率
func (h *PaymentHandler) ListMethods(c *gin.Context) {
	response.Success(c, h.app.Methods())
}

type createIntentRequest struct {
	OrderID       uint   `json:"order_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// CreateIntent 为订单创建支付意图
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.app.CreateIntent(c.Request.Context(), uid, req.OrderID,
		feedomain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to create payment intent",
			"user_id", uid, "order_id", req.OrderID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.PaymentIntentsTotal.Inc()
	response.Success(c, result)
}

type confirmRequest struct {
	IntentID        string `json:"intent_id" binding:"required"`
	PaymentMethodID string `json:"payment_method_id"`
}

// Confirm 同步确认支付意图
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	order, err := h.app.Confirm(c.Request.Context(), req.IntentID, req.PaymentMethodID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to confirm payment",
			"intent_id", req.IntentID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, gin.H{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
	})
}

// Webhook 处理器异步回调入口
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "failed to read payload", "")
		return
	}

	event, err := h.app.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		logger.Warn(c.Request.Context(), "webhook rejected", "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.WebhookEventsTotal.WithLabelValues(event.Type).Inc()
	response.Success(c, gin.H{"received": true})
}

type refundRequest struct {
	Amount *string `json:"amount"`
	Reason string  `json:"reason"`
}

// Refund 管理端对订单发起退款
func (h *PaymentHandler) Refund(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		parsed, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
			return
		}
		amount = &parsed
	}

	result, err := h.app.Refund(c.Request.Context(), uint(orderID), amount, req.Reason)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to refund order",
			"order_id", orderID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.RefundsTotal.Inc()
	response.Success(c, result)
}
