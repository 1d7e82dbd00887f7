package domain

import "time"

// BookUpdatedEvent is published by the catalog whenever a book's price or
// discount changes; the cart service reacts by resyncing every affected
// cart.
type BookUpdatedEvent struct {
	BookID    int64     `json:"book_id"`
	Price     string    `json:"price"`
	Discount  string    `json:"discount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderPaidEvent is written to the outbox in the same transaction that
// confirms a payment, then published for downstream consumers.
type OrderPaidEvent struct {
	OrderCode    string    `json:"order_code"`
	OrderID      int64     `json:"order_id"`
	UserID       int64     `json:"user_id"`
	AmountVND    int64     `json:"amount_vnd"`
	GatewayTxnID string    `json:"gateway_txn_id"`
	PaidAt       time.Time `json:"paid_at"`
}
