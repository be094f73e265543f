package orders

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

const instrumentationName = "github.com/sai-karthik-k/ecommerce-microservices/internal/orders"

// OrderUseCase coordinates order persistence with remote inventory adjustments.
//
// Adjustments are applied one call at a time with no locking and no compensation: a
// failure after an adjustment leaves the products service changed with no matching
// order. Such windows are reported as EventReconciliationIncomplete.
type OrderUseCase struct {
	repository      Repository
	gateway         ProductGateway
	publisher       EventPublisher
	logger          *zap.Logger
	tracer          trace.Tracer
	reconciliations metric.Int64Counter
}

// Option configures an OrderUseCase
type Option func(*OrderUseCase)

func WithPublisher(publisher EventPublisher) Option {
	return func(uc *OrderUseCase) { uc.publisher = publisher }
}

func WithLogger(logger *zap.Logger) Option {
	return func(uc *OrderUseCase) { uc.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(uc *OrderUseCase) { uc.tracer = tracer }
}

func WithMeter(meter metric.Meter) Option {
	return func(uc *OrderUseCase) {
		counter, err := meter.Int64Counter("orders.reconciliations",
			metric.WithDescription("Order operations by outcome"),
		)
		if err != nil {
			counter = noop.Int64Counter{}
		}
		uc.reconciliations = counter
	}
}

// NewOrderUseCase creates an OrderUseCase over the given store and gateway
func NewOrderUseCase(repository Repository, gateway ProductGateway, opts ...Option) *OrderUseCase {
	uc := &OrderUseCase{
		repository:      repository,
		gateway:         gateway,
		publisher:       NopPublisher{},
		logger:          zap.NewNop(),
		tracer:          otel.Tracer(instrumentationName),
		reconciliations: noop.Int64Counter{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GetAll returns every order in the store
func (uc *OrderUseCase) GetAll(ctx context.Context) ([]Order, error) {
	list, err := uc.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return list, nil
}

// GetByID returns one order or ErrOrderNotFound
func (uc *OrderUseCase) GetByID(ctx context.Context, id int64) (*Order, error) {
	return uc.findOrder(ctx, id)
}

// Create reserves inventory for the order and persists it with its computed total price
func (uc *OrderUseCase) Create(ctx context.Context, order Order) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", order.ProductID),
		attribute.Int("quantity", order.Quantity),
	)

	rec := newReconciliation(OperationCreate, 0)
	saved, err := uc.create(ctx, order, rec)
	uc.settle(ctx, span, rec, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order created",
		zap.Int64("order_id", saved.ID),
		zap.Int64("product_id", saved.ProductID),
		zap.Int("quantity", saved.Quantity),
		zap.String("total_price", saved.TotalPrice.String()),
	)
	uc.publish(ctx, Event{Type: EventOrderCreated, OrderID: saved.ID, ProductID: saved.ProductID, Order: saved})
	return saved, nil
}

func (uc *OrderUseCase) create(ctx context.Context, order Order, rec *Reconciliation) (*Order, error) {
	product, err := uc.fetchProduct(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Quantity < order.Quantity {
		return nil, insufficientQuantity(order.ProductID)
	}

	// price is taken before the decrement is pushed
	totalPrice := product.PriceFor(order.Quantity)

	if err := uc.adjust(ctx, rec, order.ProductID, product, -order.Quantity); err != nil {
		return nil, err
	}

	order.ID = 0
	order.TotalPrice = totalPrice
	saved, err := uc.repository.Save(ctx, &order)
	if err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	rec.OrderID = saved.ID
	rec.State = StateReconciled
	return saved, nil
}

// Update moves the order to the requested product and quantity, adjusting inventory first
func (uc *OrderUseCase) Update(ctx context.Context, id int64, updated Order) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "orders.update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", id),
		attribute.Int64("product_id", updated.ProductID),
		attribute.Int("quantity", updated.Quantity),
	)

	rec := newReconciliation(OperationUpdate, id)
	saved, err := uc.update(ctx, id, updated, rec)
	uc.settle(ctx, span, rec, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order updated",
		zap.Int64("order_id", saved.ID),
		zap.Int64("product_id", saved.ProductID),
		zap.Int("quantity", saved.Quantity),
		zap.String("total_price", saved.TotalPrice.String()),
	)
	uc.publish(ctx, Event{Type: EventOrderUpdated, OrderID: saved.ID, ProductID: saved.ProductID, Order: saved})
	return saved, nil
}

func (uc *OrderUseCase) update(ctx context.Context, id int64, updated Order, rec *Reconciliation) (*Order, error) {
	existing, err := uc.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.ProductID == updated.ProductID {
		delta := updated.Quantity - existing.Quantity

		product, err := uc.fetchProduct(ctx, existing.ProductID)
		if err != nil {
			return nil, err
		}
		if delta > 0 && product.Quantity < delta {
			return nil, insufficientQuantity(existing.ProductID)
		}
		// a negative delta gives stock back
		if err := uc.adjust(ctx, rec, existing.ProductID, product, -delta); err != nil {
			return nil, err
		}
	} else {
		oldProduct, err := uc.fetchProduct(ctx, existing.ProductID)
		if err != nil {
			return nil, err
		}
		if err := uc.adjust(ctx, rec, existing.ProductID, oldProduct, existing.Quantity); err != nil {
			return nil, err
		}

		// the credit above is not reversed if anything below fails
		newProduct, err := uc.fetchProduct(ctx, updated.ProductID)
		if err != nil {
			return nil, err
		}
		if newProduct.Quantity < updated.Quantity {
			return nil, insufficientQuantity(updated.ProductID)
		}
		if err := uc.adjust(ctx, rec, updated.ProductID, newProduct, -updated.Quantity); err != nil {
			return nil, err
		}
	}

	current, err := uc.fetchProduct(ctx, updated.ProductID)
	if err != nil {
		return nil, err
	}

	next := *existing
	next.ProductID = updated.ProductID
	next.Quantity = updated.Quantity
	next.TotalPrice = current.PriceFor(updated.Quantity)

	saved, err := uc.repository.Save(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	rec.State = StateReconciled
	return saved, nil
}

// Delete removes the order. It does not give the order's quantity back to the product.
func (uc *OrderUseCase) Delete(ctx context.Context, id int64) error {
	ctx, span := uc.tracer.Start(ctx, "orders.delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", id))

	err := uc.delete(ctx, id)
	uc.record(ctx, OperationDelete, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	uc.logger.Info("order deleted", zap.Int64("order_id", id))
	uc.publish(ctx, Event{Type: EventOrderDeleted, OrderID: id})
	return nil
}

func (uc *OrderUseCase) delete(ctx context.Context, id int64) error {
	exists, err := uc.repository.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check order %d: %w", id, err)
	}
	if !exists {
		return orderNotFound(id)
	}
	if err := uc.repository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	return nil
}

func (uc *OrderUseCase) findOrder(ctx context.Context, id int64) (*Order, error) {
	order, err := uc.repository.FindByID(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, orderNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %d: %w", id, err)
	}
	return order, nil
}

func (uc *OrderUseCase) fetchProduct(ctx context.Context, productID int64) (*Product, error) {
	product, err := uc.gateway.FetchProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch product %d: %w", ErrProductServiceUnavailable, productID, err)
	}
	return product, nil
}

// adjust changes the product's available quantity by delta and pushes it to the gateway.
func (uc *OrderUseCase) adjust(ctx context.Context, rec *Reconciliation, productID int64, product *Product, delta int) error {
	next := *product
	next.ID = productID
	next.Quantity = product.Quantity + delta

	if _, err := uc.gateway.ReplaceProduct(ctx, productID, &next); err != nil {
		return fmt.Errorf("%w: replace product %d: %w", ErrProductServiceUnavailable, productID, err)
	}
	rec.applied(productID, delta)

	uc.logger.Debug("inventory adjusted",
		zap.String("operation", rec.Operation),
		zap.Int64("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("available", next.Quantity),
	)
	return nil
}

// settle records the outcome of a create or update and reports incomplete reconciliations.
func (uc *OrderUseCase) settle(ctx context.Context, span trace.Span, rec *Reconciliation, err error) {
	uc.record(ctx, rec.Operation, err)
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if !rec.Incomplete() {
		return
	}

	uc.logger.Warn("inventory adjusted without a matching order",
		zap.String("operation", rec.Operation),
		zap.Int64("order_id", rec.OrderID),
		zap.Any("adjustments", rec.Adjustments),
		zap.Error(err),
	)
	uc.publish(ctx, Event{
		Type:           EventReconciliationIncomplete,
		OrderID:        rec.OrderID,
		ProductID:      rec.Adjustments[0].ProductID,
		Reconciliation: rec,
		Reason:         err.Error(),
	})
}

func (uc *OrderUseCase) record(ctx context.Context, operation string, err error) {
	uc.reconciliations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", Outcome(err)),
	))
}

func (uc *OrderUseCase) publish(ctx context.Context, event Event) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("failed to publish event",
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// Outcome names the error kind of err, "ok" for nil.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, ErrProductServiceUnavailable):
		return "product_service_unavailable"
	default:
		return "error"
	}
}

func orderNotFound(id int64) error {
	return fmt.Errorf("%w with id: %d", ErrOrderNotFound, id)
}

func insufficientQuantity(productID int64) error {
	return fmt.Errorf("%w for product id: %d", ErrInsufficientQuantity, productID)
}
