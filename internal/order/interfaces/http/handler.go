// Package http 订单的 HTTP 接口层，含用户端与管理端路由
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	"github.com/wyfcoding/ecommerce/internal/order/application"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/pkg/response"
)

// OrderHandler 订单 HTTP 处理器
type OrderHandler struct {
	app     *application.OrderService
	queries *application.OrderQueryService
	metrics *metrics.Metrics
}

// NewOrderHandler 创建订单 HTTP 处理器实例
func NewOrderHandler(app *application.OrderService, queries *application.OrderQueryService, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{app: app, queries: queries, metrics: m}
}

// RegisterRoutes 注册用户端与管理端路由
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.Checkout)
		api.GET("", h.ListOrders)
		api.GET("/:id", h.GetOrder)
		api.POST("/:id/cancel", h.CancelOrder)
	}

	admin := router.Group("/api/v1/admin/orders")
	{
		admin.GET("", h.AdminListOrders)
		admin.PUT("/:id/status", h.AdminUpdateStatus)
		admin.POST("/:id/cancel", h.AdminCancelOrder)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, feedomain.ErrUnsupportedPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, catalogdomain.ErrInsufficientStock):
		return http.StatusConflict
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

type checkoutRequest struct {
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	ShippingAddress domain.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *domain.Address `json:"billing_address"`
	Notes           string          `json:"notes"`
}

// Checkout 结算购物车创建订单
func (h *OrderHandler) Checkout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	order, err := h.app.Checkout(c.Request.Context(), application.CheckoutCommand{
		UserID:          uid,
		PaymentMethod:   feedomain.PaymentMethod(req.PaymentMethod),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.metrics.CheckoutFailuresTotal.Inc()
		logger.Error(c.Request.Context(), "checkout failed", "user_id", uid, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.OrdersCreatedTotal.Inc()
	amount, _ := order.TotalAmount.Float64()
	h.metrics.CheckoutAmount.Observe(amount)

	response.Success(c, order)
}

// GetOrder 获取订单详情
func (h *OrderHandler) GetOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return
	}

	order, err := h.queries.Get(c.Request.Context(), uid, uint(orderID))
	if err != nil {
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, order)
}

// ListOrders 分页查询当前用户的订单
func (h *OrderHandler) ListOrders(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	filter, ok := parseListFilter(c)
	if !ok {
		return
	}

	orders, total, err := h.queries.ListByUser(c.Request.Context(), uid, filter)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list orders", "user_id", uid, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, gin.H{
		"orders":    orders,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// CancelOrder 用户取消订单
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return
	}

	order, err := h.app.Cancel(c.Request.Context(), uid, uint(orderID))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to cancel order",
			"user_id", uid, "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.OrdersCancelledTotal.Inc()
	response.Success(c, order)
}

// AdminListOrders 管理端按条件查询订单
func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	filter, ok := parseListFilter(c)
	if !ok {
		return
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid user_id", "")
			return
		}
		filter.UserID = uint(id)
	}

	orders, total, err := h.queries.AdminList(c.Request.Context(), filter)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list orders", "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, gin.H{
		"orders":    orders,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdminUpdateStatus 管理端推进订单状态
func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	order, err := h.app.UpdateStatus(c.Request.Context(), uint(orderID), domain.Status(req.Status))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to update order status",
			"order_id", orderID, "status", req.Status, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, order)
}

// AdminCancelOrder 管理端取消任意用户的订单
func (h *OrderHandler) AdminCancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return
	}

	order, err := h.app.Cancel(c.Request.Context(), 0, uint(orderID))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to cancel order", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	h.metrics.OrdersCancelledTotal.Inc()
	response.Success(c, order)
}

func parseListFilter(c *gin.Context) (domain.ListFilter, bool) {
	filter := domain.ListFilter{
		Status:        domain.Status(c.Query("status")),
		PaymentStatus: domain.PaymentStatus(c.Query("payment_status")),
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid page", "")
		return filter, false
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid page_size", "")
		return filter, false
	}
	filter.Page = page
	filter.PageSize = pageSize

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid from time", "")
			return filter, false
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid to time", "")
			return filter, false
		}
		filter.To = &to
	}

	return filter, true
}
