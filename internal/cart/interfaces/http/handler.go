// Package http 购物车的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/internal/cart/application"
	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/pkg/response"
)

// CartHandler 购物车 HTTP 处理器
type CartHandler struct {
	app *application.CartService
}

// NewCartHandler 创建购物车 HTTP 处理器实例
func NewCartHandler(app *application.CartService) *CartHandler {
	return &CartHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *CartHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/cart")
	{
		api.GET("", h.GetCart)
		api.POST("/items", h.AddItem)
		api.PUT("/items/:id", h.UpdateItem)
		api.DELETE("/items/:id", h.RemoveItem)
		api.DELETE("", h.ClearCart)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, cartdomain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, cartdomain.ErrCartNotFound),
		errors.Is(err, cartdomain.ErrItemNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, cartdomain.ErrProductUnavailable),
		errors.Is(err, catalogdomain.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// userID 从认证中间件注入的上下文取当前用户
func userID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "missing or invalid user identity", "")
		return 0, false
	}
	return uint(id), true
}

type cartView struct {
	ID         uint                  `json:"id"`
	UserID     uint                  `json:"user_id"`
	Items      []cartdomain.CartItem `json:"items"`
	Total      string                `json:"total"`
	ItemsCount int                   `json:"items_count"`
}

func newCartView(cart *cartdomain.Cart) cartView {
	items := cart.Items
	if items == nil {
		items = []cartdomain.CartItem{}
	}
	return cartView{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      items,
		Total:      cart.Total().StringFixed(2),
		ItemsCount: cart.ItemsCount(),
	}
}

// GetCart 获取当前用户购物车
func (h *CartHandler) GetCart(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	cart, err := h.app.GetOrCreate(c.Request.Context(), uid)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get cart", "user_id", uid, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, newCartView(cart))
}

type addItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// AddItem 添加商品到购物车
func (h *CartHandler) AddItem(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cart, err := h.app.AddItem(c.Request.Context(), uid, req.ProductID, req.Quantity)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to add cart item",
			"user_id", uid, "product_id", req.ProductID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, newCartView(cart))
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// UpdateItem 修改购物车条目数量
func (h *CartHandler) UpdateItem(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid item id", "")
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cart, err := h.app.UpdateItem(c.Request.Context(), uid, uint(itemID), req.Quantity)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to update cart item",
			"user_id", uid, "item_id", itemID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, newCartView(cart))
}

// RemoveItem 移除购物车条目
func (h *CartHandler) RemoveItem(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid item id", "")
		return
	}

	cart, err := h.app.RemoveItem(c.Request.Context(), uid, uint(itemID))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to remove cart item",
			"user_id", uid, "item_id", itemID, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, newCartView(cart))
}

// ClearCart 清空购物车
func (h *CartHandler) ClearCart(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.app.Clear(c.Request.Context(), uid); err != nil {
		logger.Error(c.Request.Context(), "failed to clear cart", "user_id", uid, "error", err)
		response.ErrorWithStatus(c, statusFromError(err), err.Error(), "")
		return
	}

	response.Success(c, gin.H{"cleared": true})
}
