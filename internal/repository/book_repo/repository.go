package book_repo

import (
	"context"

	"bookshop/internal/domain"
)

type BookRepository interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error)
	// GetByIDForUpdateTx takes an exclusive row lock on the book. All writers
	// of price/discount/quantity must go through this before read-modify-write.
	GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error)
	// DecrementStockTx subtracts quantity from the book's stock under a row
	// lock. It never drives stock below zero: a missing book or insufficient
	// stock is reported through the outcome, not an error.
	DecrementStockTx(ctx context.Context, querier domain.Querier, bookID int64, quantity int) (domain.StockDecrementOutcome, error)
}
