package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	feedomain "github.com/wyfcoding/ecommerce/internal/feemanagement/domain"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
)

type fixture struct {
	store     *memoryStore
	svc       *OrderService
	queries   *OrderQueryService
	publisher *memoryPublisher
}

func newFixture() *fixture {
	store := newMemoryStore()
	publisher := &memoryPublisher{}
	orders := &memoryOrderRepo{store: store}
	svc := NewOrderService(
		orders,
		&memoryCartRepo{store: store},
		&memoryProductRepo{store: store},
		feedomain.DefaultFeeTable(),
		&memoryTx{store: store},
		publisher,
	)
	return &fixture{
		store:     store,
		svc:       svc,
		queries:   NewOrderQueryService(orders),
		publisher: publisher,
	}
}

func shippingAddress() domain.Address {
	return domain.Address{
		Recipient: "Maria Silva",
		Street:    "Rua das Flores",
		Number:    "120",
		District:  "Centro",
		City:      "São Paulo",
		State:     "SP",
		ZipCode:   "01001-000",
	}
}

func cartItem(productID uint, quantity int, price string) cartdomain.CartItem {
	return cartdomain.CartItem{
		ProductID:   productID,
		Quantity:    quantity,
		PriceAtTime: decimal.RequireFromString(price),
	}
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addProduct(2, "Camiseta", "SKU-2", "50.00", 5)
	f.store.addCartWithItems(7, cartItem(1, 2, "25.00"), cartItem(2, 1, "50.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Regexp(t, `^ORD-\d{8}-[0-9a-f]{16}$`, order.OrderNumber)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("100.00")))
	// pix 手续费 0.99%，免运费
	assert.True(t, order.TaxAmount.Equal(decimal.RequireFromString("0.99")), "got %s", order.TaxAmount)
	assert.True(t, order.ShippingAmount.IsZero())
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("100.99")), "got %s", order.TotalAmount)
	require.Len(t, order.Items, 2)

	// 库存扣减等于下单数量
	assert.Equal(t, 8, f.store.products[1].StockQuantity)
	assert.Equal(t, 4, f.store.products[2].StockQuantity)

	// 购物车已清空
	cart, err := (&memoryCartRepo{store: f.store}).GetByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	events := f.publisher.byTopic(domain.TopicOrderCreated)
	require.Len(t, events, 1)
}

func TestCheckoutSnapshotsProductAndCartPrice(t *testing.T) {
	f := newFixture()
	product := f.store.addProduct(1, "Caneca", "SKU-1", "30.00", 10)
	product.MainImage = "https://cdn.example.com/caneca.jpg"
	// 加购后涨价，订单使用购物车快照价
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "Caneca", item.ProductName)
	assert.Equal(t, "SKU-1", item.ProductSKU)
	assert.Equal(t, "https://cdn.example.com/caneca.jpg", item.ProductImage)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("25.00")))
}

func TestCheckoutBillingDefaultsToShipping(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodBoleto,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)

	billing := domain.Address{Recipient: "Financeiro", Street: "Av. Paulista", Number: "1000", City: "São Paulo", State: "SP", ZipCode: "01310-100"}
	f.store.addCartWithItems(8, cartItem(1, 1, "25.00"))
	order, err = f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          8,
		PaymentMethod:   feedomain.MethodBoleto,
		ShippingAddress: shippingAddress(),
		BillingAddress:  &billing,
	})
	require.NoError(t, err)
	assert.Equal(t, billing, order.BillingAddress)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	f.store.addCartWithItems(7)
	_, err = f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckoutUnsupportedPaymentMethod(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))

	_, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.PaymentMethod("barter"),
		ShippingAddress: shippingAddress(),
	})
	assert.ErrorIs(t, err, feedomain.ErrUnsupportedPaymentMethod)
}

func TestCheckoutAllOrNothingOnInsufficientStock(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addProduct(2, "Camiseta", "SKU-2", "50.00", 1)
	f.store.addCartWithItems(7, cartItem(1, 2, "25.00"), cartItem(2, 3, "50.00"))

	_, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Camiseta")

	// 整体回滚：没有订单、库存不变、购物车保留
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 10, f.store.products[1].StockQuantity)
	assert.Equal(t, 1, f.store.products[2].StockQuantity)
	cart, err := (&memoryCartRepo{store: f.store}).GetByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestCheckoutConcurrentLastUnit(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 1)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))
	f.store.addCartWithItems(8, cartItem(1, 1, "25.00"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []uint{7, 8} {
		wg.Add(1)
		go func(i int, uid uint) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), CheckoutCommand{
				UserID:          uid,
				PaymentMethod:   feedomain.MethodPix,
				ShippingAddress: shippingAddress(),
			})
		}(i, uid)
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, f.store.products[1].StockQuantity)
}

func TestCancelRestoresStock(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 3, "25.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	require.Equal(t, 7, f.store.products[1].StockQuantity)

	cancelled, err := f.svc.Cancel(context.Background(), 7, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.store.products[1].StockQuantity)

	// 二次取消失败且不重复返还库存
	_, err = f.svc.Cancel(context.Background(), 7, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	assert.Equal(t, 10, f.store.products[1].StockQuantity)
}

func TestCancelSkipsMissingProducts(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addProduct(2, "Camiseta", "SKU-2", "50.00", 5)
	f.store.addCartWithItems(7, cartItem(1, 2, "25.00"), cartItem(2, 1, "50.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	// 商品 2 在取消前被删除
	delete(f.store.products, 2)

	cancelled, err := f.svc.Cancel(context.Background(), 7, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.store.products[1].StockQuantity)
}

func TestCancelOwnershipCheck(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	// 其他用户不可见他人订单
	_, err = f.svc.Cancel(context.Background(), 8, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	// 管理端（userID 为 0）可取消任意订单
	_, err = f.svc.Cancel(context.Background(), 0, order.ID)
	require.NoError(t, err)
}

func TestUpdateStatusFlow(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))

	order, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          7,
		PaymentMethod:   feedomain.MethodPix,
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	for _, target := range []domain.Status{domain.StatusPaid, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		order, err = f.svc.UpdateStatus(context.Background(), order.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, order.Status)
	}
	assert.NotNil(t, order.ShippedAt)
	assert.NotNil(t, order.DeliveredAt)

	_, err = f.svc.UpdateStatus(context.Background(), order.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(context.Background(), order.ID, domain.Status("LOST"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestQueriesOwnershipAndFilters(t *testing.T) {
	f := newFixture()
	f.store.addProduct(1, "Caneca", "SKU-1", "25.00", 10)
	f.store.addCartWithItems(7, cartItem(1, 1, "25.00"))
	f.store.addCartWithItems(8, cartItem(1, 1, "25.00"))

	order7, err := f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID: 7, PaymentMethod: feedomain.MethodPix, ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	_, err = f.svc.Checkout(context.Background(), CheckoutCommand{
		UserID: 8, PaymentMethod: feedomain.MethodPix, ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)

	_, err = f.queries.Get(context.Background(), 8, order7.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	got, err := f.queries.Get(context.Background(), 7, order7.ID)
	require.NoError(t, err)
	assert.Equal(t, order7.OrderNumber, got.OrderNumber)

	mine, total, err := f.queries.ListByUser(context.Background(), 7, domain.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)

	all, total, err := f.queries.AdminList(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	cancelledOnly, _, err := f.queries.AdminList(context.Background(), domain.ListFilter{Status: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, cancelledOnly)
}
