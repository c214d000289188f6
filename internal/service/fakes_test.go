package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/linemk/sweet-shop/internal/storage"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	users   map[string]*models.User // ключ — email
	listErr error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Email]; ok {
		return nil, storage.ErrUserExists
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) ListUsers(ctx context.Context) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	users := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserRepo) HasUsers(ctx context.Context) (bool, error) {
	return len(f.users) > 0, nil
}

// fakeSweetRepo хранит каталог в памяти, транзакцию игнорирует
type fakeSweetRepo struct {
	mu            sync.Mutex
	sweets        map[int64]*models.Sweet
	lockErr       error
	decrementErr  map[int64]error
	decrements    []int64
	lockedIDs     []int64
	updateSweetFn func(*models.Sweet) error
}

var _ storage.SweetStorage = (*fakeSweetRepo)(nil)

func newFakeSweetRepo(sweets ...*models.Sweet) *fakeSweetRepo {
	f := &fakeSweetRepo{
		sweets:       make(map[int64]*models.Sweet),
		decrementErr: make(map[int64]error),
	}
	for _, s := range sweets {
		f.sweets[s.ID] = s
	}
	return f
}

func (f *fakeSweetRepo) CreateSweet(ctx context.Context, sweet *models.Sweet) (*models.Sweet, error) {
	for _, s := range f.sweets {
		if s.Name == sweet.Name {
			return nil, storage.ErrSweetExists
		}
	}
	sweet.ID = int64(len(f.sweets) + 1)
	f.sweets[sweet.ID] = sweet
	return sweet, nil
}

func (f *fakeSweetRepo) GetSweetByID(ctx context.Context, id int64) (*models.Sweet, error) {
	s, ok := f.sweets[id]
	if !ok {
		return nil, storage.ErrSweetNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSweetRepo) ListSweets(ctx context.Context) ([]*models.Sweet, error) {
	var out []*models.Sweet
	for _, s := range f.sweets {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSweetRepo) DeleteSweet(ctx context.Context, id int64) error {
	if _, ok := f.sweets[id]; !ok {
		return storage.ErrSweetNotFound
	}
	delete(f.sweets, id)
	return nil
}

func (f *fakeSweetRepo) UpdateSweetTx(ctx context.Context, tx *sql.Tx, sweet *models.Sweet) error {
	if f.updateSweetFn != nil {
		return f.updateSweetFn(sweet)
	}
	cp := *sweet
	f.sweets[sweet.ID] = &cp
	return nil
}

func (f *fakeSweetRepo) LockSweetsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Sweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.lockedIDs = append(f.lockedIDs, ids...)
	out := make(map[int64]*models.Sweet, len(ids))
	for _, id := range ids {
		if s, ok := f.sweets[id]; ok {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeSweetRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.decrementErr[id]; err != nil {
		return err
	}
	s, ok := f.sweets[id]
	if !ok || s.StockQuantity < quantity {
		return storage.ErrStockConflict
	}
	s.StockQuantity -= quantity
	f.decrements = append(f.decrements, id)
	return nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]*models.Order
	nextID    int64
	nextItem  int64
	createErr error
	itemErr   error
	// afterGet вызывается после чтения заказа, до возврата в сервис
	afterGet  func(id int64)
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*models.Order)}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, ownerID int64, total decimal.Decimal) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	now := time.Now()
	order := &models.Order{
		ID:         f.nextID,
		OwnerID:    ownerID,
		Status:     models.StatusPending,
		TotalPrice: total,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      []models.OrderItem{},
	}
	stored := *order
	f.orders[order.ID] = &stored
	return order, nil
}

func (f *fakeOrderRepo) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, orderID, sweetID int64, quantity int, price decimal.Decimal) (*models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemErr != nil {
		return nil, f.itemErr
	}
	f.nextItem++
	item := &models.OrderItem{
		ID:              f.nextItem,
		OrderID:         orderID,
		SweetID:         sweetID,
		Quantity:        quantity,
		PriceAtPurchase: price,
	}
	if order, ok := f.orders[orderID]; ok {
		order.Items = append(order.Items, *item)
	}
	return item, nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	order, ok := f.orders[id]
	var cp models.Order
	if ok {
		cp = *order
	}
	hook := f.afterGet
	f.afterGet = nil
	f.mu.Unlock()

	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		cp := *o
		cp.OwnerEmail = "owner@example.com"
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrdersByOwner(ctx context.Context, ownerID int64) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.OwnerID == ownerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return time.Time{}, storage.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return order.UpdatedAt, nil
}

type fakeCache struct {
	mu          sync.Mutex
	orders      map[int64]*models.Order
	invalidated []int64
	setErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{orders: make(map[int64]*models.Order)}
}

func (c *fakeCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	order, ok := c.orders[id]
	if !ok {
		return nil, errors.New("miss")
	}
	cp := *order
	return &cp, nil
}

func (c *fakeCache) Set(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	cp := *order
	c.orders[order.ID] = &cp
	return nil
}

// Fill повторяет SETNX: существующую запись не трогает
func (c *fakeCache) Fill(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if _, ok := c.orders[order.ID]; ok {
		return nil
	}
	cp := *order
	c.orders[order.ID] = &cp
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type publishedEvent struct {
	kind     string
	orderID  int64
	status   models.OrderStatus
	previous models.OrderStatus
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) OrderPlaced(ctx context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{kind: "placed", orderID: order.ID, status: order.Status})
	return p.err
}

func (p *fakePublisher) OrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{kind: "status_changed", orderID: order.ID, status: order.Status, previous: previous})
	return p.err
}
