package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// in-memory store（WithinTxは全体ロック + 失敗時にスナップショットへ戻す）
// =====================

var errInjected = errors.New("injected failure")

type memStore struct {
	mu sync.Mutex

	products map[int64]model.Product
	orders   map[int64]model.Order
	items    map[int64][]model.OrderItem
	payments map[int64]model.Payment
	audit    []model.AuditLog

	nextOrderID   int64
	nextPaymentID int64

	// "order_items" / "payments" で書き込みを失敗させる
	failOn string
}

func newMemStore() *memStore {
	return &memStore{
		products:      map[int64]model.Product{},
		orders:        map[int64]model.Order{},
		items:         map[int64][]model.OrderItem{},
		payments:      map[int64]model.Payment{},
		nextOrderID:   1,
		nextPaymentID: 1,
	}
}

func (s *memStore) addProduct(id int64, name string, price string, stock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = model.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
}

func (s *memStore) stock(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) paymentsOf(orderID int64) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentsOfLocked(orderID)
}

func (s *memStore) paymentsOfLocked(orderID int64) []model.Payment {
	out := []model.Payment{}
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audit)
}

type memSnapshot struct {
	products      map[int64]model.Product
	orders        map[int64]model.Order
	items         map[int64][]model.OrderItem
	payments      map[int64]model.Payment
	audit         []model.AuditLog
	nextOrderID   int64
	nextPaymentID int64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products:      make(map[int64]model.Product, len(s.products)),
		orders:        make(map[int64]model.Order, len(s.orders)),
		items:         make(map[int64][]model.OrderItem, len(s.items)),
		payments:      make(map[int64]model.Payment, len(s.payments)),
		audit:         append([]model.AuditLog(nil), s.audit...),
		nextOrderID:   s.nextOrderID,
		nextPaymentID: s.nextPaymentID,
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.products = snap.products
	s.orders = snap.orders
	s.items = snap.items
	s.payments = snap.payments
	s.audit = snap.audit
	s.nextOrderID = snap.nextOrderID
	s.nextPaymentID = snap.nextPaymentID
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memRepos{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Tx外で使うPaymentRepository（ロックを取る）
func (s *memStore) PaymentRepo() repo.PaymentRepository {
	return memPayments{s: s, lock: true}
}

type memRepos struct{ s *memStore }

func (r memRepos) Orders() repo.OrderRepository         { return memOrders{r.s} }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.s} }
func (r memRepos) Payments() repo.PaymentRepository     { return memPayments{s: r.s} }
func (r memRepos) Inventory() repo.InventoryRepository  { return memInventory{r.s} }
func (r memRepos) Products() repo.ProductRepository     { return memProducts{r.s} }
func (r memRepos) AuditLogs() repo.AuditLogRepository   { return memAudit{r.s} }

type memProducts struct{ s *memStore }

func (m memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	out := []model.Product{}
	for _, p := range m.s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := m.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = int64(len(m.s.products) + 1)
	m.s.products[p.ID] = p
	return p, nil
}

func (m memProducts) Update(ctx context.Context, p model.Product) error {
	cur, ok := m.s.products[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = cur.Stock
	m.s.products[p.ID] = p
	return nil
}

func (m memProducts) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := m.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.s.products, id)
	return nil
}

type memInventory struct{ s *memStore }

func (m memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	p, ok := m.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = newStock
	m.s.products[productID] = p
	return nil
}

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := m.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	m.s.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	p, ok := m.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	m.s.products[productID] = p
	return nil
}

type memOrders struct{ s *memStore }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := m.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	out := []model.Order{}
	for _, o := range m.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return []model.Order{}, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	order.ID = m.s.nextOrderID
	m.s.nextOrderID++
	m.s.orders[order.ID] = order
	return order.ID, nil
}

func (m memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	m.s.orders[orderID] = o
	return nil
}

func (m memOrders) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.s.orders[orderID] = o
	return true, nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	out := []model.Order{}
	for _, o := range m.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

type memOrderItems struct{ s *memStore }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if m.s.failOn == "order_items" {
		return errInjected
	}
	for i := range items {
		items[i].ID = int64(i + 1)
		items[i].OrderID = orderID
	}
	m.s.items[orderID] = append(m.s.items[orderID], items...)
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem(nil), m.s.items[orderID]...), nil
}

type memPayments struct {
	s    *memStore
	lock bool
}

func (m memPayments) guard() func() {
	if !m.lock {
		return func() {}
	}
	m.s.mu.Lock()
	return m.s.mu.Unlock
}

func (m memPayments) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	defer m.guard()()
	if m.s.failOn == "payments" {
		return model.Payment{}, errInjected
	}
	p.ID = m.s.nextPaymentID
	m.s.nextPaymentID++
	m.s.payments[p.ID] = p
	return p, nil
}

func (m memPayments) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	defer m.guard()()
	return m.s.paymentsOfLocked(orderID), nil
}

func (m memPayments) FindForCallback(ctx context.Context, transactionID string, orderID int64) ([]model.Payment, error) {
	defer m.guard()()
	out := []model.Payment{}
	for _, p := range m.s.payments {
		switch {
		case transactionID != "":
			if p.TransactionID == transactionID {
				out = append(out, p)
			}
		case orderID > 0:
			if p.OrderID == orderID && p.Status == model.PaymentStatusPending {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memPayments) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, providerStatus string) error {
	defer m.guard()()
	p, ok := m.s.payments[paymentID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = status
	p.ProviderStatus = providerStatus
	m.s.payments[paymentID] = p
	return nil
}

type memAudit struct{ s *memStore }

func (m memAudit) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = int64(len(m.s.audit) + 1)
	m.s.audit = append(m.s.audit, log)
	return nil
}

// 新しい順。actionとresource_typeだけ絞り込む
func (m memAudit) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	var hit []model.AuditLog
	for i := len(m.s.audit) - 1; i >= 0; i-- {
		l := m.s.audit[i]
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		if filter.ResourceType != nil && l.ResourceType != *filter.ResourceType {
			continue
		}
		hit = append(hit, l)
	}
	total := int64(len(hit))
	if filter.Offset >= len(hit) {
		return []model.AuditLog{}, total, nil
	}
	hit = hit[filter.Offset:]
	if filter.Limit > 0 && len(hit) > filter.Limit {
		hit = hit[:filter.Limit]
	}
	return hit, total, nil
}

// =====================
// 外部依存のフェイク
// =====================

type fakeGateway struct {
	mu    sync.Mutex
	calls []usecase.PaymentRequest
	err   error
	seq   int
}

func (g *fakeGateway) RequestToPay(ctx context.Context, req usecase.PaymentRequest) (usecase.PaymentInitiation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return usecase.PaymentInitiation{}, g.err
	}
	g.seq++
	return usecase.PaymentInitiation{
		TransactionID:  fmt.Sprintf("tx-%d", g.seq),
		ProviderStatus: "PENDING",
	}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []usecase.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev usecase.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type mapCache struct {
	mu sync.Mutex
	m  map[int64]usecase.OrderStatusSnapshot
}

func newMapCache() *mapCache {
	return &mapCache{m: map[int64]usecase.OrderStatusSnapshot{}}
}

func (c *mapCache) Get(ctx context.Context, orderID int64) (usecase.OrderStatusSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[orderID]
	return s, ok, nil
}

func (c *mapCache) Set(ctx context.Context, s usecase.OrderStatusSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[s.OrderID] = s
	return nil
}

func (c *mapCache) Delete(ctx context.Context, orderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, orderID)
	return nil
}

// =====================
// Helper
// =====================

func requireHTTPError(t *testing.T, err error, status int, kind usecase.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "err=%v is not HTTPError", err)
	assert.Equal(t, status, he.Status)
	assert.Equal(t, kind, he.Kind)
}

func strPtr(s string) *string { return &s }
