package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bookshop/internal/domain"
	"bookshop/internal/infrastructure/database"
	"bookshop/internal/repository/book_repo"
	"bookshop/internal/repository/cart_repo"
)

var (
	ErrBookNotFound         = errors.New("book not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("cart item not found")
	ErrBookAlreadyInCart    = errors.New("book already exists in cart")
	ErrBookUnavailable      = errors.New("book is not available")
	ErrQuantityExceedsStock = errors.New("requested quantity exceeds available stock")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidOperation     = errors.New("operation must be increase or decrease")
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*CartResponse, error)
	CountItems(ctx context.Context, userID int64) (int, error)
	AddBook(ctx context.Context, userID, bookID int64, quantity int) (*CartResponse, error)
	ChangeQuantity(ctx context.Context, userID, bookID int64, op Operation) (*CartResponse, error)
	RemoveBook(ctx context.Context, userID, bookID int64) error
	RecalculateForBook(ctx context.Context, bookID int64) error
}

type cartService struct {
	db        domain.Querier
	txm       database.TxManager
	carts     cart_repo.CartRepository
	books     book_repo.BookRepository
	batchSize int
	logger    *zap.Logger
}

func NewCartService(
	db domain.Querier,
	txm database.TxManager,
	carts cart_repo.CartRepository,
	books book_repo.BookRepository,
	batchSize int,
	logger *zap.Logger,
) CartService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &cartService{
		db:        db,
		txm:       txm,
		carts:     carts,
		books:     books,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*CartResponse, error) {
	cart, err := s.carts.GetByUserIDTx(ctx, s.db, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to get cart", zap.Int64("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("failed to get cart: %w", err)
		}
		// Carts are created lazily on first interaction.
		if err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
			created, createErr := s.getOrCreateCartLocked(ctx, q, userID)
			if createErr != nil {
				return createErr
			}
			cart = created
			return nil
		}); err != nil {
			s.logger.Error("Failed to create cart", zap.Int64("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}
	return s.buildResponse(ctx, s.db, cart)
}

func (s *cartService) CountItems(ctx context.Context, userID int64) (int, error) {
	cart, err := s.carts.GetByUserIDTx(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		s.logger.Error("Failed to get cart for item count", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to get cart: %w", err)
	}
	count, err := s.carts.CountItemsTx(ctx, s.db, cart.ID)
	if err != nil {
		s.logger.Error("Failed to count cart items", zap.Int64("cart_id", cart.ID), zap.Error(err))
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}

func (s *cartService) AddBook(ctx context.Context, userID, bookID int64, quantity int) (*CartResponse, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var response *CartResponse
	err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
		cart, err := s.getOrCreateCartLocked(ctx, q, userID)
		if err != nil {
			return err
		}

		book, err := s.books.GetByIDTx(ctx, q, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			return err
		}

		if _, err := s.carts.GetItemTx(ctx, q, cart.ID, bookID); err == nil {
			return ErrBookAlreadyInCart
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if book.Quantity <= 0 {
			return ErrBookUnavailable
		}
		if quantity > book.Quantity {
			return ErrQuantityExceedsStock
		}

		item := &domain.CartItem{
			CartID:    cart.ID,
			BookID:    book.ID,
			Quantity:  quantity,
			Discount:  book.Discount,
			BookPrice: book.Price,
		}
		if err := s.carts.CreateItemTx(ctx, q, item); err != nil {
			return err
		}

		cart.TotalPrice = cart.TotalPrice.Add(domain.LineTotal(book.Price, book.Discount, quantity)).Round(2)
		if err := s.carts.UpdateTotalTx(ctx, q, cart.ID, cart.TotalPrice); err != nil {
			return err
		}

		response, err = s.buildResponse(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Book added to cart",
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.Int("quantity", quantity))
	return response, nil
}

func (s *cartService) ChangeQuantity(ctx context.Context, userID, bookID int64, op Operation) (*CartResponse, error) {
	var delta int
	switch op {
	case OpIncrease:
		delta = 1
	case OpDecrease:
		delta = -1
	default:
		return nil, ErrInvalidOperation
	}

	var response *CartResponse
	err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
		cart, err := s.carts.GetByUserIDForUpdateTx(ctx, q, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCartNotFound
			}
			return err
		}

		book, err := s.books.GetByIDTx(ctx, q, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			return err
		}

		item, err := s.carts.GetItemTx(ctx, q, cart.ID, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemNotFound
			}
			return err
		}

		if book.Quantity <= 0 {
			return ErrBookUnavailable
		}

		// Subtract the old line contribution before touching the item, then
		// add back the new one; both sides go through LineTotal.
		cart.TotalPrice = cart.TotalPrice.Sub(domain.LineTotal(item.BookPrice, item.Discount, item.Quantity))

		newQuantity := item.Quantity + delta
		if newQuantity < 0 {
			newQuantity = 0
		}
		if newQuantity > book.Quantity {
			return ErrQuantityExceedsStock
		}

		if newQuantity == 0 {
			if err := s.carts.DeleteItemTx(ctx, q, item.ID); err != nil {
				return err
			}
		} else {
			item.Quantity = newQuantity
			item.BookPrice = book.Price
			item.Discount = book.Discount
			if err := s.carts.UpdateItemTx(ctx, q, item); err != nil {
				return err
			}
		}

		cart.TotalPrice = cart.TotalPrice.Add(domain.LineTotal(book.Price, book.Discount, newQuantity)).Round(2)
		if err := s.carts.UpdateTotalTx(ctx, q, cart.ID, cart.TotalPrice); err != nil {
			return err
		}

		response, err = s.buildResponse(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cart quantity changed",
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.String("operation", string(op)))
	return response, nil
}

func (s *cartService) RemoveBook(ctx context.Context, userID, bookID int64) error {
	err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
		cart, err := s.carts.GetByUserIDForUpdateTx(ctx, q, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCartNotFound
			}
			return err
		}

		item, err := s.carts.GetItemTx(ctx, q, cart.ID, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemNotFound
			}
			return err
		}

		if err := s.carts.DeleteItemTx(ctx, q, item.ID); err != nil {
			return err
		}

		cart.TotalPrice = cart.TotalPrice.Sub(domain.LineTotal(item.BookPrice, item.Discount, item.Quantity)).Round(2)
		return s.carts.UpdateTotalTx(ctx, q, cart.ID, cart.TotalPrice)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Book removed from cart", zap.Int64("user_id", userID), zap.Int64("book_id", bookID))
	return nil
}

// RecalculateForBook resyncs every cart referencing the book after a catalog
// price or discount change: snapshots are refreshed in bulk, then each
// affected cart total is recomputed from scratch under its own row lock.
// The whole operation is idempotent and safe to re-run after a partial
// failure.
func (s *cartService) RecalculateForBook(ctx context.Context, bookID int64) error {
	book, err := s.books.GetByIDTx(ctx, s.db, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookNotFound
		}
		return fmt.Errorf("failed to get book %d: %w", bookID, err)
	}

	err = s.txm.WithinTx(ctx, func(q domain.Querier) error {
		return s.carts.UpdateSnapshotsForBookTx(ctx, q, book.ID, book.Price, book.Discount)
	})
	if err != nil {
		s.logger.Error("Failed to refresh cart item snapshots", zap.Int64("book_id", bookID), zap.Error(err))
		return fmt.Errorf("failed to refresh snapshots for book %d: %w", bookID, err)
	}

	cartIDs, err := s.carts.ListCartIDsForBookTx(ctx, s.db, bookID)
	if err != nil {
		return fmt.Errorf("failed to list affected carts for book %d: %w", bookID, err)
	}
	if len(cartIDs) == 0 {
		return nil
	}

	s.logger.Info("Recalculating carts after catalog change",
		zap.Int64("book_id", bookID),
		zap.Int("affected_carts", len(cartIDs)))

	for start := 0; start < len(cartIDs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(cartIDs) {
			end = len(cartIDs)
		}
		for _, cartID := range cartIDs[start:end] {
			if err := s.recalculateCart(ctx, cartID); err != nil {
				s.logger.Error("Failed to recalculate cart",
					zap.Int64("cart_id", cartID),
					zap.Int64("book_id", bookID),
					zap.Error(err))
				return fmt.Errorf("failed to recalculate cart %d: %w", cartID, err)
			}
		}
	}
	return nil
}

// recalculateCart recomputes one cart total as its own transaction so
// already-processed carts stay correct if a later one fails.
func (s *cartService) recalculateCart(ctx context.Context, cartID int64) error {
	return s.txm.WithinTx(ctx, func(q domain.Querier) error {
		cart, err := s.carts.GetByIDForUpdateTx(ctx, q, cartID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		items, err := s.carts.ListItemsTx(ctx, q, cart.ID)
		if err != nil {
			return err
		}
		return s.carts.UpdateTotalTx(ctx, q, cart.ID, domain.CartTotal(items))
	})
}

func (s *cartService) getOrCreateCartLocked(ctx context.Context, q domain.Querier, userID int64) (*domain.Cart, error) {
	cart, err := s.carts.GetByUserIDForUpdateTx(ctx, q, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	cart = &domain.Cart{UserID: userID}
	if err := s.carts.CreateTx(ctx, q, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) buildResponse(ctx context.Context, q domain.Querier, cart *domain.Cart) (*CartResponse, error) {
	items, err := s.carts.ListItemsTx(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		line := CartLine{
			BookID:   item.BookID,
			Price:    item.BookPrice,
			Discount: item.Discount,
			Quantity: item.Quantity,
		}
		book, err := s.books.GetByIDTx(ctx, q, item.BookID)
		if err == nil {
			line.Title = book.Title
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		lines = append(lines, line)
	}

	return &CartResponse{
		CartID:     cart.ID,
		TotalPrice: cart.TotalPrice,
		Books:      lines,
	}, nil
}
