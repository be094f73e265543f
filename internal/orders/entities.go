package orders

import (
	"github.com/shopspring/decimal"
)

// Order represents a commitment to purchase a quantity of one product
type Order struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"prodId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Product is the catalog state owned by the products service
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// PriceFor returns the total price of quantity units at the product's current price.
func (p Product) PriceFor(quantity int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

// ReconciliationState represents how far an order got in being reconciled with inventory
type ReconciliationState string

const (
	StateDraft      ReconciliationState = "draft"
	StateReconciled ReconciliationState = "reconciled"
)

// Adjustment is a change already pushed to a product's available quantity
type Adjustment struct {
	ProductID int64 `json:"product_id"`
	Delta     int   `json:"delta"`
}

// Reconciliation tracks one create or update attempt. It is never persisted; it exists so
// the window between a remote adjustment and the order save is visible in logs and events.
type Reconciliation struct {
	Operation   string              `json:"operation"`
	OrderID     int64               `json:"order_id,omitempty"`
	State       ReconciliationState `json:"state"`
	Adjustments []Adjustment        `json:"adjustments"`
}

func newReconciliation(operation string, orderID int64) *Reconciliation {
	return &Reconciliation{
		Operation: operation,
		OrderID:   orderID,
		State:     StateDraft,
	}
}

func (r *Reconciliation) applied(productID int64, delta int) {
	r.Adjustments = append(r.Adjustments, Adjustment{ProductID: productID, Delta: delta})
}

// Incomplete reports whether inventory was touched without the order reaching the store.
func (r *Reconciliation) Incomplete() bool {
	return r.State == StateDraft && len(r.Adjustments) > 0
}
