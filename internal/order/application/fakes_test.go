package application

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	cartdomain "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"gorm.io/gorm"
)

// memoryStore 汇集全部内存仓储，事务回滚通过整体快照实现
type memoryStore struct {
	mu       sync.Mutex
	nextID   uint
	products map[uint]*catalogdomain.Product
	carts    map[uint]*cartdomain.Cart
	items    map[uint]*cartdomain.CartItem
	orders   map[uint]*domain.Order
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:   1,
		products: make(map[uint]*catalogdomain.Product),
		carts:    make(map[uint]*cartdomain.Cart),
		items:    make(map[uint]*cartdomain.CartItem),
		orders:   make(map[uint]*domain.Order),
	}
}

func (s *memoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

type storeSnapshot struct {
	nextID   uint
	products map[uint]catalogdomain.Product
	carts    map[uint]cartdomain.Cart
	items    map[uint]cartdomain.CartItem
	orders   map[uint]domain.Order
}

func (s *memoryStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		nextID:   s.nextID,
		products: make(map[uint]catalogdomain.Product, len(s.products)),
		carts:    make(map[uint]cartdomain.Cart, len(s.carts)),
		items:    make(map[uint]cartdomain.CartItem, len(s.items)),
		orders:   make(map[uint]domain.Order, len(s.orders)),
	}
	for id, p := range s.products {
		snap.products[id] = *p
	}
	for id, c := range s.carts {
		snap.carts[id] = *c
	}
	for id, i := range s.items {
		snap.items[id] = *i
	}
	for id, o := range s.orders {
		copied := *o
		copied.Items = append([]domain.OrderItem(nil), o.Items...)
		snap.orders[id] = copied
	}
	return snap
}

func (s *memoryStore) restore(snap storeSnapshot) {
	s.nextID = snap.nextID
	s.products = make(map[uint]*catalogdomain.Product, len(snap.products))
	for id, p := range snap.products {
		copied := p
		s.products[id] = &copied
	}
	s.carts = make(map[uint]*cartdomain.Cart, len(snap.carts))
	for id, c := range snap.carts {
		copied := c
		s.carts[id] = &copied
	}
	s.items = make(map[uint]*cartdomain.CartItem, len(snap.items))
	for id, i := range snap.items {
		copied := i
		s.items[id] = &copied
	}
	s.orders = make(map[uint]*domain.Order, len(snap.orders))
	for id, o := range snap.orders {
		copied := o
		s.orders[id] = &copied
	}
}

// memoryTx 用互斥锁串行化事务，失败时恢复快照模拟回滚
type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type memoryProductRepo struct{ store *memoryStore }

func (r *memoryProductRepo) Get(_ context.Context, id uint) (*catalogdomain.Product, error) {
	p, ok := r.store.products[id]
	if !ok {
		return nil, catalogdomain.ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (r *memoryProductRepo) GetForUpdate(ctx context.Context, id uint) (*catalogdomain.Product, error) {
	return r.Get(ctx, id)
}

func (r *memoryProductRepo) DebitStock(_ context.Context, id uint, quantity int) error {
	p, ok := r.store.products[id]
	if !ok || p.StockQuantity < quantity {
		return catalogdomain.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	return nil
}

func (r *memoryProductRepo) CreditStock(_ context.Context, id uint, quantity int) error {
	p, ok := r.store.products[id]
	if !ok {
		return catalogdomain.ErrProductNotFound
	}
	p.StockQuantity += quantity
	return nil
}

type memoryCartRepo struct{ store *memoryStore }

func (r *memoryCartRepo) GetByUserID(_ context.Context, userID uint) (*cartdomain.Cart, error) {
	for _, cart := range r.store.carts {
		if cart.UserID == userID {
			out := *cart
			out.Items = nil
			for _, item := range r.store.items {
				if item.CartID == cart.ID {
					out.Items = append(out.Items, *item)
				}
			}
			return &out, nil
		}
	}
	return nil, cartdomain.ErrCartNotFound
}

func (r *memoryCartRepo) Create(_ context.Context, cart *cartdomain.Cart) error {
	cart.ID = r.store.allocID()
	stored := *cart
	r.store.carts[cart.ID] = &stored
	return nil
}

func (r *memoryCartRepo) GetItem(_ context.Context, userID, itemID uint) (*cartdomain.CartItem, error) {
	item, ok := r.store.items[itemID]
	if !ok {
		return nil, cartdomain.ErrItemNotFound
	}
	cart, ok := r.store.carts[item.CartID]
	if !ok || cart.UserID != userID {
		return nil, cartdomain.ErrItemNotFound
	}
	out := *item
	return &out, nil
}

func (r *memoryCartRepo) SaveItem(_ context.Context, item *cartdomain.CartItem) error {
	if item.ID == 0 {
		item.ID = r.store.allocID()
	}
	stored := *item
	r.store.items[item.ID] = &stored
	return nil
}

func (r *memoryCartRepo) DeleteItem(_ context.Context, itemID uint) error {
	delete(r.store.items, itemID)
	return nil
}

func (r *memoryCartRepo) Clear(_ context.Context, userID uint) error {
	for _, cart := range r.store.carts {
		if cart.UserID != userID {
			continue
		}
		for id, item := range r.store.items {
			if item.CartID == cart.ID {
				delete(r.store.items, id)
			}
		}
	}
	return nil
}

type memoryOrderRepo struct{ store *memoryStore }

func (r *memoryOrderRepo) Create(_ context.Context, order *domain.Order) error {
	order.ID = r.store.allocID()
	for i := range order.Items {
		order.Items[i].ID = r.store.allocID()
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	r.store.orders[order.ID] = &stored
	return nil
}

func (r *memoryOrderRepo) Get(_ context.Context, id uint) (*domain.Order, error) {
	order, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	out := *order
	out.Items = append([]domain.OrderItem(nil), order.Items...)
	return &out, nil
}

func (r *memoryOrderRepo) GetForUpdate(ctx context.Context, id uint) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *memoryOrderRepo) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	for _, order := range r.store.orders {
		if order.OrderNumber == orderNumber {
			out := *order
			out.Items = append([]domain.OrderItem(nil), order.Items...)
			return &out, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memoryOrderRepo) GetByPaymentIntentID(_ context.Context, intentID string) (*domain.Order, error) {
	for _, order := range r.store.orders {
		if order.PaymentIntentID == intentID {
			out := *order
			out.Items = append([]domain.OrderItem(nil), order.Items...)
			return &out, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memoryOrderRepo) Save(_ context.Context, order *domain.Order) error {
	existing, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	stored := *order
	stored.Items = existing.Items
	r.store.orders[order.ID] = &stored
	return nil
}

func (r *memoryOrderRepo) List(_ context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	var matched []*domain.Order
	for _, order := range r.store.orders {
		if filter.UserID != 0 && order.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out := *order
		out.Items = append([]domain.OrderItem(nil), order.Items...)
		matched = append(matched, &out)
	}
	return matched, int64(len(matched)), nil
}

type capturedEvent struct {
	Topic string
	Key   string
	Event any
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *memoryPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *memoryPublisher) byTopic(topic string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if strings.HasPrefix(e.Topic, topic) {
			out = append(out, e)
		}
	}
	return out
}

func (s *memoryStore) addProduct(id uint, name, sku, price string, stock int) *catalogdomain.Product {
	p := &catalogdomain.Product{
		Model:         gorm.Model{ID: id},
		Name:          name,
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	s.products[id] = p
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return p
}

func (s *memoryStore) addCartWithItems(userID uint, items ...cartdomain.CartItem) {
	cart := &cartdomain.Cart{Model: gorm.Model{ID: s.allocID()}, UserID: userID}
	s.carts[cart.ID] = cart
	for i := range items {
		item := items[i]
		item.ID = s.allocID()
		item.CartID = cart.ID
		s.items[item.ID] = &item
	}
}
