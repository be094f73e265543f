package orders

import (
	"context"
)

// Repository is the keyed order store. Implementations return ErrOrderNotFound from
// FindByID when the id is absent.
type Repository interface {
	// FindAll returns every stored order in store iteration order
	FindAll(ctx context.Context) ([]Order, error)

	// FindByID returns the order with the given id
	FindByID(ctx context.Context, id int64) (*Order, error)

	// Save inserts the order when ID is zero (assigning one) and overwrites it otherwise
	Save(ctx context.Context, order *Order) (*Order, error)

	// DeleteByID removes the order
	DeleteByID(ctx context.Context, id int64) error

	// ExistsByID reports whether an order with the id is stored
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// ProductGateway is the remote products service. Both calls must fail with an error
// wrapping ErrRemoteUnavailable on any communication fault.
type ProductGateway interface {
	FetchProduct(ctx context.Context, productID int64) (*Product, error)
	ReplaceProduct(ctx context.Context, productID int64, product *Product) (*Product, error)
}
