package order_repo

import (
	"context"

	"bookshop/internal/domain"
)

type OrderRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
	CreateItemsTx(ctx context.Context, querier domain.Querier, items []*domain.OrderItem) error
	GetByCodeTx(ctx context.Context, querier domain.Querier, orderCode string) (*domain.Order, error)
	// GetByCodeForUpdateTx locks the order row for the remainder of the
	// transaction. The IPN handler relies on this to serialize duplicate
	// concurrent deliveries of the same callback.
	GetByCodeForUpdateTx(ctx context.Context, querier domain.Querier, orderCode string) (*domain.Order, error)
	ListItemsTx(ctx context.Context, querier domain.Querier, orderID int64) ([]*domain.OrderItem, error)
	UpdateConvertedAmountTx(ctx context.Context, querier domain.Querier, orderID int64, amountVND int64) error
	UpdatePaymentStatusTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
}
