package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is one-per-user and created lazily on first cart interaction.
// Invariant: TotalPrice equals the sum of its items' line totals after every
// mutating operation.
type Cart struct {
	ID         int64
	UserID     int64
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem holds a price/discount snapshot copied from the book at add time
// or last recalculation, not a live join to the catalog.
type CartItem struct {
	ID        int64
	CartID    int64
	BookID    int64
	Quantity  int
	Discount  decimal.Decimal
	BookPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
