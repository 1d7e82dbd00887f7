package payment_repo

import (
	"context"

	"bookshop/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Payment, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	UpdateAmountTx(ctx context.Context, querier domain.Querier, id int64, amountVND int64) error
}
