package orders

import (
	"context"
)

const (
	EventOrderCreated             = "order.created"
	EventOrderUpdated             = "order.updated"
	EventOrderDeleted             = "order.deleted"
	EventReconciliationIncomplete = "inventory.reconciliation_incomplete"
)

// Event is a notification emitted by OrderUseCase after an operation settles
type Event struct {
	Type           string          `json:"type"`
	OrderID        int64           `json:"order_id,omitempty"`
	ProductID      int64           `json:"product_id,omitempty"`
	Order          *Order          `json:"order,omitempty"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// EventPublisher delivers events; failures never change an operation's result.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
