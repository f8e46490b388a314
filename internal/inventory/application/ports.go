package application

import (
	"context"

	"github.com/orderflow/fulfillment/internal/inventory/domain"
)

type StockRepository interface {
	// Reserve atomically checks and decrements stock for one order. Repeating
	// a reserve for an order that already holds a reservation returns the
	// prior successful result without mutating anything.
	Reserve(ctx context.Context, orderID, productID string, quantity int) (domain.ReserveResult, error)

	// Release returns an order's reserved stock. It reports whether stock was
	// actually returned; unknown or already released orders are a no-op.
	Release(ctx context.Context, orderID string) (bool, error)

	UpsertProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}
