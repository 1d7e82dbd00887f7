package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshop/internal/domain"
	"bookshop/internal/repository/payment_repo"
)

type pgPaymentRepository struct{}

func NewPaymentRepository() payment_repo.PaymentRepository {
	return &pgPaymentRepository{}
}

func (r *pgPaymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `INSERT INTO payments (payment_method, pg_name, pg_transaction_id, pg_status, pg_response_message, pg_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := querier.QueryRowContext(ctx, query,
		payment.Method, payment.GatewayName, payment.GatewayTxnID, payment.Status, payment.ResponseMessage, payment.AmountVND,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Payment, error) {
	query := `SELECT id, payment_method, pg_name, pg_transaction_id, pg_status, pg_response_message, pg_amount, created_at, updated_at
		FROM payments WHERE id = $1`
	payment := &domain.Payment{}
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&payment.ID, &payment.Method, &payment.GatewayName, &payment.GatewayTxnID,
		&payment.Status, &payment.ResponseMessage, &payment.AmountVND, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return payment, nil
}

func (r *pgPaymentRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `UPDATE payments SET pg_status = $2, pg_transaction_id = $3, pg_response_message = $4, updated_at = NOW() WHERE id = $1`
	res, err := querier.ExecContext(ctx, query, payment.ID, payment.Status, payment.GatewayTxnID, payment.ResponseMessage)
	if err != nil {
		return fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
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

func (r *pgPaymentRepository) UpdateAmountTx(ctx context.Context, querier domain.Querier, id int64, amountVND int64) error {
	query := `UPDATE payments SET pg_amount = $2, updated_at = NOW() WHERE id = $1`
	_, err := querier.ExecContext(ctx, query, id, amountVND)
	if err != nil {
		return fmt.Errorf("failed to update amount for payment %d: %w", id, err)
	}
	return nil
}
