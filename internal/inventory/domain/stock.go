package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("product not found")

// ReserveOutcome is the three-way result of a reservation attempt. Callers
// decide policy for each case; the ledger never folds "unknown product" into
// a plain business failure.
type ReserveOutcome string

const (
	Reserved          ReserveOutcome = "reserved"
	InsufficientStock ReserveOutcome = "insufficient_stock"
	ProductNotFound   ReserveOutcome = "not_found"
)

type Product struct {
	ID         string    `json:"id"`
	Available  int       `json:"available"`
	PriceCents int64     `json:"price_cents"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "reserved"
	ReservationReleased ReservationStatus = "released"
)

// Reservation records one order's hold on stock. Keying reservations by order
// ID is what makes Release idempotent: a release for an unknown or already
// released order is a no-op.
type Reservation struct {
	OrderID   string
	ProductID string
	Quantity  int
	Status    ReservationStatus
	UpdatedAt time.Time
}

// ReserveResult carries the outcome plus the unit price the ledger quoted.
// The price is populated on both success and insufficient stock, matching the
// upstream behavior of always returning the current price.
type ReserveResult struct {
	Outcome    ReserveOutcome
	PriceCents int64
}
