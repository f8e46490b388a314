package domain

import "time"

// Outcome is the single event a fulfillment run publishes when it reaches a
// terminal status. Delivery is at-least-once; consumers deduplicate on
// (OrderID, Status).
type Outcome struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	Status     Status    `json:"status"`
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurred_at"`
}
