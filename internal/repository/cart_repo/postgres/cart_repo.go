package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
	"bookshop/internal/repository/cart_repo"
)

type pgCartRepository struct{}

func NewCartRepository() cart_repo.CartRepository {
	return &pgCartRepository{}
}

const cartColumns = `id, user_id, total_price, created_at, updated_at`
const cartItemColumns = `id, cart_id, book_id, quantity, discount, book_price, created_at, updated_at`

func scanCart(row *sql.Row) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := row.Scan(&cart.ID, &cart.UserID, &cart.TotalPrice, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *pgCartRepository) GetByUserIDTx(ctx context.Context, querier domain.Querier, userID int64) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	cart, err := scanCart(querier.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get cart for user %d: %w", userID, err)
	}
	return cart, nil
}

func (r *pgCartRepository) GetByUserIDForUpdateTx(ctx context.Context, querier domain.Querier, userID int64) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 FOR UPDATE`
	cart, err := scanCart(querier.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to lock cart for user %d: %w", userID, err)
	}
	return cart, nil
}

func (r *pgCartRepository) GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, cartID int64) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1 FOR UPDATE`
	cart, err := scanCart(querier.QueryRowContext(ctx, query, cartID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to lock cart %d: %w", cartID, err)
	}
	return cart, nil
}

func (r *pgCartRepository) CreateTx(ctx context.Context, querier domain.Querier, cart *domain.Cart) error {
	query := `INSERT INTO carts (user_id, total_price, created_at, updated_at) VALUES ($1, $2, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := querier.QueryRowContext(ctx, query, cart.UserID, cart.TotalPrice).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cart for user %d: %w", cart.UserID, err)
	}
	return nil
}

func (r *pgCartRepository) UpdateTotalTx(ctx context.Context, querier domain.Querier, cartID int64, total decimal.Decimal) error {
	query := `UPDATE carts SET total_price = $2, updated_at = NOW() WHERE id = $1`
	res, err := querier.ExecContext(ctx, query, cartID, total)
	if err != nil {
		return fmt.Errorf("failed to update total for cart %d: %w", cartID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *pgCartRepository) GetItemTx(ctx context.Context, querier domain.Querier, cartID, bookID int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND book_id = $2`
	item := &domain.CartItem{}
	err := querier.QueryRowContext(ctx, query, cartID, bookID).Scan(
		&item.ID, &item.CartID, &item.BookID, &item.Quantity, &item.Discount, &item.BookPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get cart item (cart %d, book %d): %w", cartID, bookID, err)
	}
	return item, nil
}

func (r *pgCartRepository) ListItemsTx(ctx context.Context, querier domain.Querier, cartID int64) ([]*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY id`
	rows, err := querier.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for cart %d: %w", cartID, err)
	}
	defer rows.Close()

	var items []*domain.CartItem
	for rows.Next() {
		item := &domain.CartItem{}
		if err := rows.Scan(&item.ID, &item.CartID, &item.BookID, &item.Quantity, &item.Discount, &item.BookPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func (r *pgCartRepository) CountItemsTx(ctx context.Context, querier domain.Querier, cartID int64) (int, error) {
	var count int
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM cart_items WHERE cart_id = $1`, cartID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items for cart %d: %w", cartID, err)
	}
	return count, nil
}

func (r *pgCartRepository) CreateItemTx(ctx context.Context, querier domain.Querier, item *domain.CartItem) error {
	query := `INSERT INTO cart_items (cart_id, book_id, quantity, discount, book_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := querier.QueryRowContext(ctx, query, item.CartID, item.BookID, item.Quantity, item.Discount, item.BookPrice).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cart item (cart %d, book %d): %w", item.CartID, item.BookID, err)
	}
	return nil
}

func (r *pgCartRepository) UpdateItemTx(ctx context.Context, querier domain.Querier, item *domain.CartItem) error {
	query := `UPDATE cart_items SET quantity = $2, discount = $3, book_price = $4, updated_at = NOW() WHERE id = $1`
	res, err := querier.ExecContext(ctx, query, item.ID, item.Quantity, item.Discount, item.BookPrice)
	if err != nil {
		return fmt.Errorf("failed to update cart item %d: %w", item.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *pgCartRepository) DeleteItemTx(ctx context.Context, querier domain.Querier, itemID int64) error {
	_, err := querier.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item %d: %w", itemID, err)
	}
	return nil
}

func (r *pgCartRepository) DeleteItemsByCartTx(ctx context.Context, querier domain.Querier, cartID int64) error {
	_, err := querier.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete items for cart %d: %w", cartID, err)
	}
	return nil
}

func (r *pgCartRepository) UpdateSnapshotsForBookTx(ctx context.Context, querier domain.Querier, bookID int64, price, discount decimal.Decimal) error {
	query := `UPDATE cart_items SET book_price = $2, discount = $3, updated_at = NOW() WHERE book_id = $1`
	_, err := querier.ExecContext(ctx, query, bookID, price, discount)
	if err != nil {
		return fmt.Errorf("failed to update snapshots for book %d: %w", bookID, err)
	}
	return nil
}

func (r *pgCartRepository) ListCartIDsForBookTx(ctx context.Context, querier domain.Querier, bookID int64) ([]int64, error) {
	query := `SELECT DISTINCT cart_id FROM cart_items WHERE book_id = $1 ORDER BY cart_id`
	rows, err := querier.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart ids for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}
