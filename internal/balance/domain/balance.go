package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("account not found")

// ChargeOutcome is the three-way result of a check-and-deduct attempt.
type ChargeOutcome string

const (
	Charged           ChargeOutcome = "charged"
	InsufficientFunds ChargeOutcome = "insufficient_funds"
	AccountNotFound   ChargeOutcome = "account_not_found"
)

type Account struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction is the history record appended on both charge paths. One row
// per order; retried charges resolve to the recorded result instead of
// deducting twice.
type Transaction struct {
	ID          string
	OrderID     string
	AccountID   string
	AmountCents int64
	Status      TransactionStatus
	Reason      string
	CreatedAt   time.Time
}
