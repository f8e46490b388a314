package domain

import (
	"errors"
	"fmt"

	balancedom "github.com/orderflow/fulfillment/internal/balance/domain"
	inventorydom "github.com/orderflow/fulfillment/internal/inventory/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

// TransportError marks a ledger call that never produced a business answer:
// the connection failed, the deadline expired, or the peer returned a 5xx.
// Callers retry these; a business refusal is never wrapped in one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err carries a TransportError anywhere in its chain.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ReserveReply is the inventory ledger's answer to a reserve call. Order is
// the snapshot with price and total filled in by the ledger.
type ReserveReply struct {
	Outcome inventorydom.ReserveOutcome
	Order   orderdom.Order
}

// ChargeReply is the balance ledger's answer to a charge call.
type ChargeReply struct {
	Outcome balancedom.ChargeOutcome
	Order   orderdom.Order
}
