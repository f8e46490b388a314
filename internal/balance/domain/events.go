package domain

import "time"

// TransactionRecorded announces one appended history row on the
// payment.transactions channel, via the outbox.
type TransactionRecorded struct {
	TransactionID string            `json:"transaction_id"`
	OrderID       string            `json:"order_id"`
	AccountID     string            `json:"account_id"`
	AmountCents   int64             `json:"amount_cents"`
	Status        TransactionStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
