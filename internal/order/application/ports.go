package application

import (
	"context"

	"github.com/orderflow/fulfillment/internal/order/domain"
)

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)

	// ApplyStatus upserts the order snapshot with the given terminal status.
	// It reports false when the row already carries a terminal status, which
	// makes re-delivered outcome events a no-op.
	ApplyStatus(ctx context.Context, o domain.Order, status domain.Status) (bool, error)
}
