package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshop/internal/domain"
	"bookshop/internal/repository/book_repo"
)

type pgBookRepository struct{}

func NewBookRepository() book_repo.BookRepository {
	return &pgBookRepository{}
}

const bookColumns = `id, title, price, discount, quantity, created_at, updated_at`

func scanBook(row *sql.Row) (*domain.Book, error) {
	book := &domain.Book{}
	err := row.Scan(&book.ID, &book.Title, &book.Price, &book.Discount, &book.Quantity, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (r *pgBookRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

func (r *pgBookRepository) GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1 FOR UPDATE`
	book, err := scanBook(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to lock book %d: %w", id, err)
	}
	return book, nil
}

func (r *pgBookRepository) DecrementStockTx(ctx context.Context, querier domain.Querier, bookID int64, quantity int) (domain.StockDecrementOutcome, error) {
	book, err := r.GetByIDForUpdateTx(ctx, querier, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockBookMissing, nil
		}
		return 0, err
	}
	if book.Quantity < quantity {
		return domain.StockInsufficient, nil
	}

	newQuantity := book.Quantity - quantity
	if newQuantity < 0 {
		newQuantity = 0
	}
	query := `UPDATE books SET quantity = $2, updated_at = NOW() WHERE id = $1`
	if _, err := querier.ExecContext(ctx, query, bookID, newQuantity); err != nil {
		return 0, fmt.Errorf("failed to decrement stock for book %d: %w", bookID, err)
	}
	return domain.StockDecremented, nil
}
