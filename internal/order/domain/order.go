package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("order not found")

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether s ends a fulfillment run. PROCESSING is never the
// last status an order record is left with.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Line is the single item of an order. One line per order is a deliberate
// simplification carried over from the upstream system.
type Line struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// Order is the snapshot passed between the coordinator and the ledgers.
// PriceCents and TotalCents are populated by the inventory step, not the caller.
type Order struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Line       Line      `json:"line"`
	TotalCents int64     `json:"total_cents"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewOrder(id, accountID, productID string, quantity int) Order {
	now := time.Now().UTC()
	return Order{
		ID:        id,
		AccountID: accountID,
		Line:      Line{ProductID: productID, Quantity: quantity},
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
