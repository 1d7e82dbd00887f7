package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshop/internal/domain"
	"bookshop/internal/repository/address_repo"
)

type pgAddressRepository struct{}

func NewAddressRepository() address_repo.AddressRepository {
	return &pgAddressRepository{}
}

func (r *pgAddressRepository) GetUserAddressTx(ctx context.Context, querier domain.Querier, addressID, userID int64) (*domain.Address, error) {
	query := `SELECT id, user_id, line, city FROM addresses WHERE id = $1 AND user_id = $2`
	address := &domain.Address{}
	err := querier.QueryRowContext(ctx, query, addressID, userID).Scan(&address.ID, &address.UserID, &address.Line, &address.City)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get address %d for user %d: %w", addressID, userID, err)
	}
	return address, nil
}

type pgUserRepository struct{}

func NewUserRepository() address_repo.UserRepository {
	return &pgUserRepository{}
}

func (r *pgUserRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.User, error) {
	query := `SELECT id, email FROM users WHERE id = $1`
	user := &domain.User{}
	err := querier.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}
