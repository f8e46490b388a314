package application

import (
	"context"

	"github.com/orderflow/fulfillment/internal/balance/domain"
)

type BalanceRepository interface {
	// Charge atomically runs check-and-deduct for one order and, in the same
	// database transaction, appends the history record and its outbox row.
	// Retrying an order that already has a transaction returns the recorded
	// outcome without deducting again.
	Charge(ctx context.Context, txn domain.Transaction, traceparent string) (domain.ChargeOutcome, error)

	UpsertAccount(ctx context.Context, a domain.Account) error
	GetAccount(ctx context.Context, accountID string) (domain.Account, error)
}
