package application

import (
	"context"

	"github.com/orderflow/fulfillment/internal/orchestrator/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

// InventoryClient talks to the inventory ledger. Release is idempotent per
// order and reports whether stock was actually returned.
type InventoryClient interface {
	Reserve(ctx context.Context, o orderdom.Order) (domain.ReserveReply, error)
	Release(ctx context.Context, orderID string) (bool, error)
}

// BalanceClient talks to the balance ledger.
type BalanceClient interface {
	Charge(ctx context.Context, o orderdom.Order) (domain.ChargeReply, error)
}

// OutcomePublisher emits the single terminal event of a fulfillment run.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, ev orderdom.Outcome) error
}
