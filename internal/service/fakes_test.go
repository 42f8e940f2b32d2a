package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crm-service/internal/models"
	"crm-service/internal/money"
	"crm-service/internal/store"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory double for OrderStore and PaymentStore. Its
// reconciling methods mirror the real store's transactional semantics: when
// failStatusWrite is set the whole mutation is discarded, as a rolled-back
// transaction would be.
type fakeStore struct {
	mu              sync.Mutex
	customers       map[int64]*models.Customer
	products        map[int64]*models.Product
	orders          map[int64]*models.Order
	items           map[int64][]models.OrderItem
	payments        map[int64]*models.Payment
	nextID          int64
	failStatusWrite bool
	vanishedItemID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[int64]*models.Customer),
		products:  make(map[int64]*models.Product),
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64][]models.OrderItem),
		payments:  make(map[int64]*models.Payment),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrCustomerNotFound, id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrderWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.ID = f.id()
	order.OrderNumber = 1000 + order.ID
	stored := *order
	f.orders[order.ID] = &stored
	for i := range items {
		items[i].ID = f.id()
		items[i].OrderID = order.ID
	}
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrOrderNotFound, id)
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeStore) GetOrdersByCustomerID(_ context.Context, customerID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderWithItems(_ context.Context, order *models.Order, changed []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.ID]; !ok {
		return fmt.Errorf("%w: %d", store.ErrOrderNotFound, order.ID)
	}

	stored := f.items[order.ID]
	for _, upd := range changed {
		if upd.ID == f.vanishedItemID {
			return &store.ItemNotFoundError{ID: upd.ID}
		}
		found := false
		for i := range stored {
			if stored[i].ID == upd.ID {
				stored[i] = upd
				found = true
				break
			}
		}
		if !found {
			return &store.ItemNotFoundError{ID: upd.ID}
		}
	}
	f.items[order.ID] = stored

	itemsTotal, discountTotal, taxTotal := decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range stored {
		itemsTotal = itemsTotal.Add(item.Subtotal)
		discountTotal = discountTotal.Add(item.DiscountAmount)
		taxTotal = taxTotal.Add(item.TaxAmount)
	}
	order.ItemsTotal = itemsTotal
	order.DiscountTotal = discountTotal
	order.ItemsTaxTotal = taxTotal
	order.GrandTotal = money.GrandTotal(itemsTotal, discountTotal, taxTotal, order.Shipping)
	order.PaymentStatus = models.DerivePaymentStatus(f.sumPayments(order.ID), order.GrandTotal)

	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeStore) sumPayments(orderID int64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range f.payments {
		if p.OrderID == orderID {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func (f *fakeStore) reconcile(orderID int64) (models.PaymentStatus, models.PaymentStatus) {
	order := f.orders[orderID]
	old := order.PaymentStatus
	order.PaymentStatus = models.DerivePaymentStatus(f.sumPayments(orderID), order.GrandTotal)
	return old, order.PaymentStatus
}

func (f *fakeStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrPaymentNotFound, id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) GetPaymentsByOrderID(_ context.Context, orderID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrderPaymentSummary(_ context.Context, orderID int64) (*models.PaymentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrOrderNotFound, orderID)
	}
	count := 0
	for _, p := range f.payments {
		if p.OrderID == orderID {
			count++
		}
	}
	totalPaid := f.sumPayments(orderID)
	return &models.PaymentSummary{
		OrderID:      orderID,
		TotalPaid:    totalPaid,
		GrandTotal:   order.GrandTotal,
		Balance:      order.GrandTotal.Sub(totalPaid),
		PaymentCount: count,
	}, nil
}

func (f *fakeStore) CreatePaymentReconciling(_ context.Context, payment *models.Payment) (models.PaymentStatus, models.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[payment.OrderID]; !ok {
		return "", "", fmt.Errorf("%w: %d", store.ErrOrderNotFound, payment.OrderID)
	}
	if f.failStatusWrite {
		return "", "", errors.New("simulated status write failure")
	}
	payment.ID = f.id()
	stored := *payment
	f.payments[payment.ID] = &stored
	old, updated := f.reconcile(payment.OrderID)
	return old, updated, nil
}

func (f *fakeStore) UpdatePaymentReconciling(_ context.Context, payment *models.Payment) (models.PaymentStatus, models.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[payment.ID]; !ok {
		return "", "", fmt.Errorf("%w: %d", store.ErrPaymentNotFound, payment.ID)
	}
	if f.failStatusWrite {
		return "", "", errors.New("simulated status write failure")
	}
	stored := *payment
	f.payments[payment.ID] = &stored
	old, updated := f.reconcile(payment.OrderID)
	return old, updated, nil
}

func (f *fakeStore) DeletePaymentReconciling(_ context.Context, paymentID, orderID int64) (models.PaymentStatus, models.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[paymentID]; !ok {
		return "", "", fmt.Errorf("%w: %d", store.ErrPaymentNotFound, paymentID)
	}
	if f.failStatusWrite {
		return "", "", errors.New("simulated status write failure")
	}
	delete(f.payments, paymentID)
	old, updated := f.reconcile(orderID)
	return old, updated, nil
}

// fakePublisher records published event types in order.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) push(t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, t)
	return nil
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) PublishOrderUpdated(_ context.Context, e *models.OrderUpdatedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) PublishPaymentRecorded(_ context.Context, e *models.PaymentRecordedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) PublishPaymentUpdated(_ context.Context, e *models.PaymentUpdatedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) PublishPaymentDeleted(_ context.Context, e *models.PaymentDeletedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) PublishPaymentStatusChanged(_ context.Context, e *models.PaymentStatusChangedEvent) error {
	return f.push(e.EventType)
}

func (f *fakePublisher) has(eventType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// fakeCache is an in-memory SummaryCache counting hits and misses.
type fakeCache struct {
	mu      sync.Mutex
	entries map[int64]*models.PaymentSummary
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int64]*models.PaymentSummary)}
}

func (f *fakeCache) GetSummary(_ context.Context, orderID int64) (*models.PaymentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.entries[orderID]; ok {
		f.hits++
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeCache) SetSummary(_ context.Context, summary *models.PaymentSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *summary
	f.entries[summary.OrderID] = &copied
	f.sets++
	return nil
}

func (f *fakeCache) InvalidateSummary(_ context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, orderID)
	return nil
}

// seedCustomerAndProducts loads a customer plus two products used across tests.
func seedCustomerAndProducts(f *fakeStore) {
	f.customers[3] = &models.Customer{ID: 3, Name: "Hartley Garments", Company: "Hartley & Co"}
	f.products[1] = &models.Product{ID: 1, SKU: "TEE-CLS", Title: "Classic Tee", UnitPrice: dec("99.99")}
	f.products[2] = &models.Product{ID: 2, SKU: "BOX-CRN", Title: "Corrugated Box", UnitPrice: dec("4.25")}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
