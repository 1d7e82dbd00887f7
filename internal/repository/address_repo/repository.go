package address_repo

import (
	"context"

	"bookshop/internal/domain"
)

// Address and user data are owned elsewhere; checkout only needs read-only
// lookups scoped to the requesting user.
type AddressRepository interface {
	GetUserAddressTx(ctx context.Context, querier domain.Querier, addressID, userID int64) (*domain.Address, error)
}

type UserRepository interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.User, error)
}
