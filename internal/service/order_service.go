package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-service/internal/models"
	"crm-service/internal/money"
	"crm-service/internal/store"
	"crm-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface the order service depends on.
type OrderStore interface {
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
	UpdateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
}

// EventPublisher is the outbound event surface shared by the services.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishPaymentUpdated(ctx context.Context, event *models.PaymentUpdatedEvent) error
	PublishPaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error
	PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error
}

// OrderService builds and mutates order aggregates
type OrderService struct {
	store           OrderStore
	cache           SummaryCache
	eventPublisher  EventPublisher
	defaultCurrency string
	logger          *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, cache SummaryCache, eventPublisher EventPublisher, defaultCurrency string) *OrderService {
	return &OrderService{
		store:           store,
		cache:           cache,
		eventPublisher:  eventPublisher,
		defaultCurrency: defaultCurrency,
		logger:          util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID int64              `json:"customer_id" binding:"required"`
	Items      []OrderItemRequest `json:"items"`
	Shipping   decimal.Decimal    `json:"shipping"`
	Currency   string             `json:"currency"`
	Notes      string             `json:"notes"`
}

// OrderItemRequest represents one proposed line item. UnitPrice overrides the
// catalog price when set; title/sku always come from the product snapshot.
type OrderItemRequest struct {
	ProductID          int64            `json:"product_id" binding:"required"`
	Quantity           int              `json:"quantity" binding:"required,min=1"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	TaxPercentage      decimal.Decimal  `json:"tax_percentage"`
}

// UpdateOrderRequest is a partial order patch. Order-level fields and item
// patches are independent; at least one of them must be present.
type UpdateOrderRequest struct {
	Status   *string           `json:"status"`
	Shipping *decimal.Decimal  `json:"shipping"`
	Notes    *string           `json:"notes"`
	Items    []OrderItemUpdate `json:"items"`
}

// OrderItemUpdate patches one item by id, scoped to the owning order.
type OrderItemUpdate struct {
	ID                 int64            `json:"id" binding:"required"`
	Quantity           *int             `json:"quantity"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	TaxPercentage      *decimal.Decimal `json:"tax_percentage"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (r *UpdateOrderRequest) IsEmpty() bool {
	return r.Status == nil && r.Shipping == nil && r.Notes == nil && len(r.Items) == 0
}

// OrderResponse is the order aggregate returned by create/get/update.
type OrderResponse struct {
	Order    *models.Order      `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Customer *models.Customer   `json:"customer"`
}

// CreateOrder persists an order plus its line items in one transaction.
// An empty item list is legal; such orders simply start with a zero total.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, performedBy string) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	customer, err := s.store.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			util.OrdersFailedTotal.WithLabelValues("customer_not_found").Inc()
			return nil, NotFound("Customer", req.CustomerID)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	products, err := s.lookupProducts(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	itemsTotal, discountTotal, taxTotal := decimal.Zero, decimal.Zero, decimal.Zero

	for _, ir := range req.Items {
		product := products[ir.ProductID]

		unitPrice := product.UnitPrice
		if ir.UnitPrice != nil {
			unitPrice = *ir.UnitPrice
		}

		item := buildItem(product, unitPrice, ir.Quantity, ir.DiscountPercentage, ir.TaxPercentage)
		items = append(items, item)

		itemsTotal = itemsTotal.Add(item.Subtotal)
		discountTotal = discountTotal.Add(item.DiscountAmount)
		taxTotal = taxTotal.Add(item.TaxAmount)
	}

	order := &models.Order{
		CustomerID:    req.CustomerID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		ItemsTotal:    itemsTotal,
		ItemsTaxTotal: taxTotal,
		DiscountTotal: discountTotal,
		Shipping:      money.Round2(req.Shipping),
		GrandTotal:    money.GrandTotal(itemsTotal, discountTotal, taxTotal, req.Shipping),
		Currency:      currency,
		Notes:         req.Notes,
	}

	if err := s.store.CreateOrderWithItems(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("grand_total", order.GrandTotal.String()))

	s.publishOrderCreated(ctx, order, items, performedBy)

	return &OrderResponse{Order: order, Items: items, Customer: customer}, nil
}

// GetOrder retrieves an order aggregate by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NotFound("Order", orderID)
		}
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	customer, err := s.store.GetCustomerByID(ctx, order.CustomerID)
	if err != nil && !errors.Is(err, store.ErrCustomerNotFound) {
		return nil, err
	}

	return &OrderResponse{Order: order, Items: items, Customer: customer}, nil
}

// ListCustomerOrders returns a customer's orders, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	if _, err := s.store.GetCustomerByID(ctx, customerID); err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, NotFound("Customer", customerID)
		}
		return nil, err
	}
	return s.store.GetOrdersByCustomerID(ctx, customerID)
}

// UpdateOrder applies order-level and per-item patches, then recomputes the
// order totals from the stored items so grand_total cannot drift from the
// item sum. A patch with no changes is rejected.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID int64, req *UpdateOrderRequest, performedBy string) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	if req.IsEmpty() {
		return nil, Invalid(CodeInvalidUpdates, "", "update payload contains no order fields and no item changes")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NotFound("Order", orderID)
		}
		return nil, err
	}

	if req.Status != nil {
		status, err := models.ParseOrderStatus(*req.Status)
		if err != nil {
			return nil, Invalid(CodeInvalidStatus, "status", err.Error())
		}
		order.Status = status
	}
	if req.Shipping != nil {
		order.Shipping = money.Round2(*req.Shipping)
	}
	if req.Notes != nil {
		order.Notes = *req.Notes
	}

	changed, err := s.applyItemUpdates(ctx, orderID, req.Items)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrderWithItems(ctx, order, changed); err != nil {
		var itemErr *store.ItemNotFoundError
		if errors.As(err, &itemErr) {
			return nil, NotFound("Order item", itemErr.ID)
		}
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, NotFound("Order", orderID)
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	// The patch may have moved grand_total, which the cached payment summary
	// derives from; drop it so the next read re-aggregates.
	if s.cache != nil {
		if err := s.cache.InvalidateSummary(ctx, orderID); err != nil {
			s.logger.Warn("Summary cache invalidation failed",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	util.OrdersUpdatedTotal.Inc()
	s.logger.Info("Order updated",
		zap.Int64("order_id", order.ID),
		zap.Int("items_changed", len(changed)),
		zap.String("grand_total", order.GrandTotal.String()))

	event := &models.OrderUpdatedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeOrderUpdated, performedBy),
		OrderID:      order.ID,
		GrandTotal:   order.GrandTotal,
		ItemsChanged: len(changed),
	}
	if err := s.eventPublisher.PublishOrderUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderUpdated event", zap.Error(err))
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderResponse{Order: order, Items: items}, nil
}

// applyItemUpdates loads the current items and merges the patches, rejecting
// ids that do not belong to the order. Derived amounts are recomputed from
// the merged fields.
func (s *OrderService) applyItemUpdates(ctx context.Context, orderID int64, updates []OrderItemUpdate) ([]models.OrderItem, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	existing, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.OrderItem, len(existing))
	for _, item := range existing {
		byID[item.ID] = item
	}

	changed := make([]models.OrderItem, 0, len(updates))
	for _, upd := range updates {
		item, ok := byID[upd.ID]
		if !ok {
			return nil, NotFound("Order item", upd.ID)
		}

		if upd.Quantity != nil {
			item.Quantity = *upd.Quantity
		}
		if upd.UnitPrice != nil {
			item.UnitPrice = *upd.UnitPrice
		}
		if upd.DiscountPercentage != nil {
			item.DiscountPercentage = *upd.DiscountPercentage
		}
		if upd.TaxPercentage != nil {
			item.TaxPercentage = *upd.TaxPercentage
		}

		recomputeItem(&item)
		changed = append(changed, item)
	}
	return changed, nil
}

// lookupProducts resolves the products referenced by the proposed items.
func (s *OrderService) lookupProducts(ctx context.Context, items []OrderItemRequest) (map[int64]*models.Product, error) {
	if len(items) == 0 {
		return map[int64]*models.Product{}, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	for _, item := range items {
		if _, ok := productMap[item.ProductID]; !ok {
			return nil, NotFound("Product", item.ProductID)
		}
	}
	return productMap, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem, performedBy string) {
	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated, performedBy),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		GrandTotal:  order.GrandTotal,
		Currency:    order.Currency,
		Items:       eventItems,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// buildItem snapshots a product into a priced line item.
func buildItem(product *models.Product, unitPrice decimal.Decimal, quantity int, discountPct, taxPct decimal.Decimal) models.OrderItem {
	item := models.OrderItem{
		ProductID:          product.ID,
		Title:              product.Title,
		SKU:                product.SKU,
		UnitPrice:          unitPrice,
		Quantity:           quantity,
		DiscountPercentage: discountPct,
		TaxPercentage:      taxPct,
	}
	recomputeItem(&item)
	return item
}

// recomputeItem derives subtotal/discount/tax/total from the item's raw fields.
func recomputeItem(item *models.OrderItem) {
	item.Subtotal = money.Round2(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	item.DiscountAmount = money.DiscountAmount(item.Subtotal, item.DiscountPercentage)
	item.TaxAmount = money.TaxAmount(item.Subtotal.Sub(item.DiscountAmount), item.TaxPercentage)
	item.Total = money.LineTotal(item.Subtotal, item.DiscountAmount, item.TaxAmount)
}

// newBaseEvent stamps a fresh event envelope.
func newBaseEvent(eventType, performedBy string) models.BaseEvent {
	if performedBy == "" {
		performedBy = "system"
	}
	return models.BaseEvent{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		Timestamp:   time.Now(),
		PerformedBy: performedBy,
	}
}
