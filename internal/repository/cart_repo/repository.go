package cart_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
)

type CartRepository interface {
	GetByUserIDTx(ctx context.Context, querier domain.Querier, userID int64) (*domain.Cart, error)
	// GetByUserIDForUpdateTx locks the cart row. Every operation that reads or
	// writes the cart total must hold this lock for the whole transaction so
	// cart mutations, checkout reads and bulk recalculation serialize per cart.
	GetByUserIDForUpdateTx(ctx context.Context, querier domain.Querier, userID int64) (*domain.Cart, error)
	GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, cartID int64) (*domain.Cart, error)
	CreateTx(ctx context.Context, querier domain.Querier, cart *domain.Cart) error
	UpdateTotalTx(ctx context.Context, querier domain.Querier, cartID int64, total decimal.Decimal) error

	GetItemTx(ctx context.Context, querier domain.Querier, cartID, bookID int64) (*domain.CartItem, error)
	ListItemsTx(ctx context.Context, querier domain.Querier, cartID int64) ([]*domain.CartItem, error)
	CountItemsTx(ctx context.Context, querier domain.Querier, cartID int64) (int, error)
	CreateItemTx(ctx context.Context, querier domain.Querier, item *domain.CartItem) error
	UpdateItemTx(ctx context.Context, querier domain.Querier, item *domain.CartItem) error
	DeleteItemTx(ctx context.Context, querier domain.Querier, itemID int64) error
	DeleteItemsByCartTx(ctx context.Context, querier domain.Querier, cartID int64) error

	// UpdateSnapshotsForBookTx refreshes the price/discount snapshot on every
	// cart item that references the book.
	UpdateSnapshotsForBookTx(ctx context.Context, querier domain.Querier, bookID int64, price, discount decimal.Decimal) error
	ListCartIDsForBookTx(ctx context.Context, querier domain.Querier, bookID int64) ([]int64, error)
}
