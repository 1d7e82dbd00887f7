package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshop/internal/domain"
	"bookshop/internal/repository/order_repo"
)

type pgOrderRepository struct{}

func NewOrderRepository() order_repo.OrderRepository {
	return &pgOrderRepository{}
}

const orderColumns = `id, user_id, email, order_code, payment_id, address_id, total_amount, total_amount_vnd,
	order_status, payment_status, paid_at, order_date, created_at, updated_at`

func scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var paidAt sql.NullTime
	err := row.Scan(
		&order.ID, &order.UserID, &order.Email, &order.OrderCode, &order.PaymentID, &order.AddressID,
		&order.TotalAmount, &order.TotalAmountVND, &order.OrderStatus, &order.PaymentStatus,
		&paidAt, &order.OrderDate, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}

func (r *pgOrderRepository) CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `INSERT INTO orders (user_id, email, order_code, payment_id, address_id, total_amount, total_amount_vnd,
			order_status, payment_status, order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := querier.QueryRowContext(ctx, query,
		order.UserID, order.Email, order.OrderCode, order.PaymentID, order.AddressID,
		order.TotalAmount, order.TotalAmountVND, order.OrderStatus, order.PaymentStatus, order.OrderDate,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order %s: %w", order.OrderCode, err)
	}
	return nil
}

func (r *pgOrderRepository) CreateItemsTx(ctx context.Context, querier domain.Querier, items []*domain.OrderItem) error {
	query := `INSERT INTO order_items (order_id, book_id, quantity, discount, ordered_book_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`
	for _, item := range items {
		err := querier.QueryRowContext(ctx, query,
			item.OrderID, item.BookID, item.Quantity, item.Discount, item.OrderedBookPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item (order %d, book %d): %w", item.OrderID, item.BookID, err)
		}
	}
	return nil
}

func (r *pgOrderRepository) GetByCodeTx(ctx context.Context, querier domain.Querier, orderCode string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1`
	order, err := scanOrder(querier.QueryRowContext(ctx, query, orderCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get order %s: %w", orderCode, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetByCodeForUpdateTx(ctx context.Context, querier domain.Querier, orderCode string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1 FOR UPDATE`
	order, err := scanOrder(querier.QueryRowContext(ctx, query, orderCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", orderCode, err)
	}
	return order, nil
}

func (r *pgOrderRepository) ListItemsTx(ctx context.Context, querier domain.Querier, orderID int64) ([]*domain.OrderItem, error) {
	query := `SELECT id, order_id, book_id, quantity, discount, ordered_book_price, created_at, updated_at
		FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := querier.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		item := &domain.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID, &item.Quantity, &item.Discount, &item.OrderedBookPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func (r *pgOrderRepository) UpdateConvertedAmountTx(ctx context.Context, querier domain.Querier, orderID int64, amountVND int64) error {
	query := `UPDATE orders SET total_amount_vnd = $2, updated_at = NOW() WHERE id = $1`
	_, err := querier.ExecContext(ctx, query, orderID, amountVND)
	if err != nil {
		return fmt.Errorf("failed to update converted amount for order %d: %w", orderID, err)
	}
	return nil
}

func (r *pgOrderRepository) UpdatePaymentStatusTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `UPDATE orders SET payment_status = $2, paid_at = $3, updated_at = NOW() WHERE id = $1`
	var paidAt sql.NullTime
	if order.PaidAt != nil {
		paidAt = sql.NullTime{Time: *order.PaidAt, Valid: true}
	}
	res, err := querier.ExecContext(ctx, query, order.ID, order.PaymentStatus, paidAt)
	if err != nil {
		return fmt.Errorf("failed to update payment status for order %d: %w", order.ID, err)
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
