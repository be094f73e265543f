package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
	"github.com/sai-karthik-k/ecommerce-microservices/internal/store"
)

// fakeCatalog is an in-memory products service with call counting and fault injection
type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]orders.Product

	fetches  int
	replaces int

	// 1-based call number that fails; zero never fails
	failFetch   int
	failReplace int
}

func newFakeCatalog(products ...orders.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[int64]orders.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) FetchProduct(ctx context.Context, productID int64) (*orders.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetches++
	if c.fetches == c.failFetch {
		return nil, fmt.Errorf("%w: connection refused", orders.ErrRemoteUnavailable)
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", orders.ErrRemoteUnavailable)
	}
	return &p, nil
}

func (c *fakeCatalog) ReplaceProduct(ctx context.Context, productID int64, product *orders.Product) (*orders.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replaces++
	if c.replaces == c.failReplace {
		return nil, fmt.Errorf("%w: timeout", orders.ErrRemoteUnavailable)
	}
	if _, ok := c.products[productID]; !ok {
		return nil, fmt.Errorf("%w: status 404", orders.ErrRemoteUnavailable)
	}
	c.products[productID] = *product
	out := *product
	return &out, nil
}

func (c *fakeCatalog) available(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].Quantity
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event orders.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockRepository lets a test fail individual store calls
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindAll(ctx context.Context) ([]orders.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]orders.Order), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (*orders.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*orders.Order)
	return order, args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	args := m.Called(ctx, order)
	saved, _ := args.Get(0).(*orders.Order)
	return saved, args.Error(1)
}

func (m *MockRepository) DeleteByID(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertPrice(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(price(want)), "expected price %s, got %s", want, got)
}

func p1() orders.Product {
	return orders.Product{ID: 1, Name: "P1", Price: price("5.00"), Quantity: 10}
}

func p2() orders.Product {
	return orders.Product{ID: 2, Name: "P2", Price: price("2.00"), Quantity: 10}
}

func newUseCase(repo orders.Repository, catalog orders.ProductGateway, opts ...orders.Option) *orders.OrderUseCase {
	return orders.NewOrderUseCase(repo, catalog, opts...)
}

func TestOrderUseCase_Create(t *testing.T) {
	// Arrange
	catalog := newFakeCatalog(p1())
	repo := store.NewMemoryStore()
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e orders.Event) bool {
		return e.Type == orders.EventOrderCreated
	})).Return(nil).Once()
	uc := newUseCase(repo, catalog, orders.WithPublisher(publisher))

	// Act
	order, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 3})

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 3, order.Quantity)
	assertPrice(t, "15.00", order.TotalPrice)
	assert.Equal(t, 7, catalog.available(1))

	stored, err := uc.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assertPrice(t, "15.00", stored.TotalPrice)
	publisher.AssertExpectations(t)
}

func TestOrderUseCase_CreateIgnoresIncomingID(t *testing.T) {
	catalog := newFakeCatalog(p1())
	repo := store.NewMemoryStore()
	uc := newUseCase(repo, catalog)

	first, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	second, err := uc.Create(context.Background(), orders.Order{ID: first.ID, ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	all, err := uc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOrderUseCase_CreateWithinAndBeyondStock(t *testing.T) {
	tests := []struct {
		name      string
		available int
		requested int
		wantErr   error
		wantLeft  int
	}{
		{name: "less than available", available: 10, requested: 4, wantLeft: 6},
		{name: "exactly available", available: 10, requested: 10, wantLeft: 0},
		{name: "more than available", available: 10, requested: 11, wantErr: orders.ErrInsufficientQuantity, wantLeft: 10},
		{name: "empty stock", available: 0, requested: 1, wantErr: orders.ErrInsufficientQuantity, wantLeft: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := p1()
			product.Quantity = tt.available
			catalog := newFakeCatalog(product)
			repo := store.NewMemoryStore()
			uc := newUseCase(repo, catalog)

			order, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: tt.requested})

			assert.Equal(t, tt.wantLeft, catalog.available(1))
			all, _ := repo.FindAll(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, order)
				assert.Empty(t, all)
				assert.Zero(t, catalog.replaces)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, product.PriceFor(tt.requested).String(), order.TotalPrice.String())
			assert.Len(t, all, 1)
		})
	}
}

func TestOrderUseCase_CreateInsufficientMessage(t *testing.T) {
	uc := newUseCase(store.NewMemoryStore(), newFakeCatalog(p1()))

	_, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 11})

	assert.EqualError(t, err, "insufficient product quantity for product id: 1")
}

func TestOrderUseCase_CreateGatewayFailure(t *testing.T) {
	tests := []struct {
		name        string
		failFetch   int
		failReplace int
		wantLeft    int
	}{
		{name: "fetch fails", failFetch: 1, wantLeft: 10},
		{name: "replace fails", failReplace: 1, wantLeft: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			catalog := newFakeCatalog(p1())
			catalog.failFetch = tt.failFetch
			catalog.failReplace = tt.failReplace
			repo := store.NewMemoryStore()
			publisher := new(MockPublisher)
			uc := newUseCase(repo, catalog, orders.WithPublisher(publisher))

			// Act
			order, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 3})

			// Assert
			assert.Nil(t, order)
			assert.ErrorIs(t, err, orders.ErrProductServiceUnavailable)
			assert.ErrorIs(t, err, orders.ErrRemoteUnavailable)
			assert.Equal(t, tt.wantLeft, catalog.available(1))

			all, _ := repo.FindAll(context.Background())
			assert.Empty(t, all)
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderUseCase_CreateUnknownProduct(t *testing.T) {
	uc := newUseCase(store.NewMemoryStore(), newFakeCatalog(p1()))

	_, err := uc.Create(context.Background(), orders.Order{ProductID: 99, Quantity: 1})

	assert.ErrorIs(t, err, orders.ErrProductServiceUnavailable)
}

func TestOrderUseCase_CreateSaveFailureLeavesInventoryDecremented(t *testing.T) {
	// Arrange
	catalog := newFakeCatalog(p1())
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	var incomplete orders.Event
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e orders.Event) bool {
		return e.Type == orders.EventReconciliationIncomplete
	})).Run(func(args mock.Arguments) {
		incomplete = args.Get(1).(orders.Event)
	}).Return(nil).Once()

	uc := newUseCase(repo, catalog, orders.WithPublisher(publisher))

	// Act
	order, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 3})

	// Assert
	assert.Nil(t, order)
	require.Error(t, err)
	assert.Equal(t, "error", orders.Outcome(err))
	assert.Equal(t, 7, catalog.available(1), "decrement is not undone")

	assert.Zero(t, incomplete.OrderID)
	assert.Equal(t, int64(1), incomplete.ProductID)
	require.NotNil(t, incomplete.Reconciliation)
	assert.Equal(t, orders.StateDraft, incomplete.Reconciliation.State)
	assert.Equal(t, []orders.Adjustment{{ProductID: 1, Delta: -3}}, incomplete.Reconciliation.Adjustments)
	publisher.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestOrderUseCase_WalkThrough(t *testing.T) {
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assertPrice(t, "15.00", created.TotalPrice)
	assert.Equal(t, 7, catalog.available(1))

	updated, err := uc.Update(ctx, created.ID, orders.Order{ProductID: 1, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 5, updated.Quantity)
	assertPrice(t, "25.00", updated.TotalPrice)
	assert.Equal(t, 5, catalog.available(1))

	_, err = uc.Update(ctx, created.ID, orders.Order{ProductID: 1, Quantity: 20})
	assert.ErrorIs(t, err, orders.ErrInsufficientQuantity)
	assert.Equal(t, 5, catalog.available(1))

	unchanged, err := uc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, unchanged.Quantity)
	assertPrice(t, "25.00", unchanged.TotalPrice)
}

func TestOrderUseCase_UpdateSameProductDecrease(t *testing.T) {
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, 5, catalog.available(1))

	updated, err := uc.Update(ctx, created.ID, orders.Order{ProductID: 1, Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, 8, catalog.available(1))
	assertPrice(t, "10.00", updated.TotalPrice)
}

func TestOrderUseCase_UpdateSameProductNoChangeStillReplaces(t *testing.T) {
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	replaces := catalog.replaces

	_, err = uc.Update(ctx, created.ID, orders.Order{ProductID: 1, Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, replaces+1, catalog.replaces)
	assert.Equal(t, 8, catalog.available(1))
}

func TestOrderUseCase_UpdateAcrossProducts(t *testing.T) {
	// Arrange
	catalog := newFakeCatalog(p1(), p2())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 3})
	require.NoError(t, err)

	// Act
	updated, err := uc.Update(ctx, created.ID, orders.Order{ProductID: 2, Quantity: 4})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.ProductID)
	assert.Equal(t, 4, updated.Quantity)
	assertPrice(t, "8.00", updated.TotalPrice)
	assert.Equal(t, 10, catalog.available(1))
	assert.Equal(t, 6, catalog.available(2))
}

func TestOrderUseCase_UpdateAcrossProductsInsufficientKeepsOldCredit(t *testing.T) {
	// Arrange
	small := p2()
	small.Quantity = 2
	catalog := newFakeCatalog(p1(), small)
	repo := store.NewMemoryStore()

	var incomplete orders.Event
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e orders.Event) bool {
		return e.Type == orders.EventOrderCreated
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e orders.Event) bool {
		return e.Type == orders.EventReconciliationIncomplete
	})).Run(func(args mock.Arguments) {
		incomplete = args.Get(1).(orders.Event)
	}).Return(nil).Once()

	uc := newUseCase(repo, catalog, orders.WithPublisher(publisher))
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 7, catalog.available(1))

	// Act
	_, err = uc.Update(ctx, created.ID, orders.Order{ProductID: 2, Quantity: 5})

	// Assert
	assert.ErrorIs(t, err, orders.ErrInsufficientQuantity)
	assert.Equal(t, 10, catalog.available(1), "old product keeps the credit")
	assert.Equal(t, 2, catalog.available(2))

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ProductID)
	assert.Equal(t, 3, stored.Quantity)

	require.NotNil(t, incomplete.Reconciliation)
	assert.Equal(t, created.ID, incomplete.OrderID)
	assert.Equal(t, int64(1), incomplete.ProductID)
	assert.Equal(t, []orders.Adjustment{{ProductID: 1, Delta: 3}}, incomplete.Reconciliation.Adjustments)
	publisher.AssertExpectations(t)
}

func TestOrderUseCase_UpdateNotFound(t *testing.T) {
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)

	_, err := uc.Update(context.Background(), 404, orders.Order{ProductID: 1, Quantity: 1})

	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	assert.EqualError(t, err, "order not found with id: 404")
	assert.Zero(t, catalog.fetches)
}

func TestOrderUseCase_UpdateGatewayFailureLeavesOrderUnchanged(t *testing.T) {
	tests := []struct {
		name        string
		update      orders.Order
		failFetch   int
		failReplace int
	}{
		{name: "same product fetch", update: orders.Order{ProductID: 1, Quantity: 4}, failFetch: 2},
		{name: "same product replace", update: orders.Order{ProductID: 1, Quantity: 4}, failReplace: 2},
		{name: "price refetch", update: orders.Order{ProductID: 1, Quantity: 4}, failFetch: 3},
		{name: "new product fetch", update: orders.Order{ProductID: 2, Quantity: 4}, failFetch: 3},
		{name: "new product replace", update: orders.Order{ProductID: 2, Quantity: 4}, failReplace: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog(p1(), p2())
			repo := store.NewMemoryStore()
			uc := newUseCase(repo, catalog)
			ctx := context.Background()

			created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 3})
			require.NoError(t, err)

			catalog.failFetch = tt.failFetch
			catalog.failReplace = tt.failReplace

			_, err = uc.Update(ctx, created.ID, tt.update)

			assert.ErrorIs(t, err, orders.ErrProductServiceUnavailable)
			stored, err := repo.FindByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, *created, *stored)
		})
	}
}

func TestOrderUseCase_UpdateUsesRefetchedPrice(t *testing.T) {
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	catalog.mu.Lock()
	repriced := catalog.products[1]
	repriced.Price = price("6.50")
	catalog.products[1] = repriced
	catalog.mu.Unlock()

	updated, err := uc.Update(ctx, created.ID, orders.Order{ProductID: 1, Quantity: 2})

	require.NoError(t, err)
	assertPrice(t, "13.00", updated.TotalPrice)
}

func TestOrderUseCase_Delete(t *testing.T) {
	// Arrange
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog)
	ctx := context.Background()

	created, err := uc.Create(ctx, orders.Order{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	fetches, replaces := catalog.fetches, catalog.replaces

	// Act
	err = uc.Delete(ctx, created.ID)

	// Assert
	require.NoError(t, err)
	all, err := uc.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 7, catalog.available(1), "delete does not credit inventory")
	assert.Equal(t, fetches, catalog.fetches)
	assert.Equal(t, replaces, catalog.replaces)

	_, err = uc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestOrderUseCase_DeleteNotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ExistsByID", mock.Anything, int64(9)).Return(false, nil)
	uc := newUseCase(repo, newFakeCatalog())

	err := uc.Delete(context.Background(), 9)

	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	repo.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestOrderUseCase_StoreFailuresAreUnclassified(t *testing.T) {
	boom := errors.New("connection reset")
	repo := new(MockRepository)
	repo.On("FindAll", mock.Anything).Return([]orders.Order(nil), boom)
	repo.On("FindByID", mock.Anything, int64(1)).Return(nil, boom)
	repo.On("ExistsByID", mock.Anything, int64(1)).Return(false, boom)
	uc := newUseCase(repo, newFakeCatalog())
	ctx := context.Background()

	_, err := uc.GetAll(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "error", orders.Outcome(err))

	_, err = uc.GetByID(ctx, 1)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, orders.ErrOrderNotFound)

	err = uc.Delete(ctx, 1)
	assert.ErrorIs(t, err, boom)
}

func TestOrderUseCase_PublisherFailureDoesNotFailOperation(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	catalog := newFakeCatalog(p1())
	uc := newUseCase(store.NewMemoryStore(), catalog, orders.WithPublisher(publisher))

	order, err := uc.Create(context.Background(), orders.Order{ProductID: 1, Quantity: 1})

	require.NoError(t, err)
	assert.NotNil(t, order)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", orders.ErrOrderNotFound), "order_not_found"},
		{fmt.Errorf("x: %w", orders.ErrInsufficientQuantity), "insufficient_quantity"},
		{fmt.Errorf("x: %w", orders.ErrProductServiceUnavailable), "product_service_unavailable"},
		{errors.New("other"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, orders.Outcome(tt.err))
	}
}
