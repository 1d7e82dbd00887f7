package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID        int64
	Title     string
	Price     decimal.Decimal
	Discount  decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockDecrementOutcome reports what a stock decrement actually did. A
// confirmed payment is never rolled back over stock bookkeeping, so callers
// log the non-applied outcomes instead of failing.
type StockDecrementOutcome int

const (
	StockDecremented StockDecrementOutcome = iota
	StockInsufficient
	StockBookMissing
)
