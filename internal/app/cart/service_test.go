package cart

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshop/internal/domain"
)

type passthroughTxManager struct{}

func (passthroughTxManager) WithinTx(_ context.Context, fn func(q domain.Querier) error) error {
	return fn(nil)
}

// memCartRepo is an in-memory CartRepository. It keeps real state so tests
// can drive multi-step scenarios and check totals against a full recompute.
type memCartRepo struct {
	nextCartID int64
	nextItemID int64
	carts      map[int64]*domain.Cart
	items      map[int64]*domain.CartItem
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		nextCartID: 1,
		nextItemID: 1,
		carts:      make(map[int64]*domain.Cart),
		items:      make(map[int64]*domain.CartItem),
	}
}

func (r *memCartRepo) GetByUserIDTx(_ context.Context, _ domain.Querier, userID int64) (*domain.Cart, error) {
	for _, c := range r.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memCartRepo) GetByUserIDForUpdateTx(ctx context.Context, q domain.Querier, userID int64) (*domain.Cart, error) {
	return r.GetByUserIDTx(ctx, q, userID)
}

func (r *memCartRepo) GetByIDForUpdateTx(_ context.Context, _ domain.Querier, cartID int64) (*domain.Cart, error) {
	c, ok := r.carts[cartID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (r *memCartRepo) CreateTx(_ context.Context, _ domain.Querier, cart *domain.Cart) error {
	cart.ID = r.nextCartID
	r.nextCartID++
	cart.TotalPrice = decimal.Zero
	r.carts[cart.ID] = cart
	return nil
}

func (r *memCartRepo) UpdateTotalTx(_ context.Context, _ domain.Querier, cartID int64, total decimal.Decimal) error {
	c, ok := r.carts[cartID]
	if !ok {
		return sql.ErrNoRows
	}
	c.TotalPrice = total
	return nil
}

func (r *memCartRepo) GetItemTx(_ context.Context, _ domain.Querier, cartID, bookID int64) (*domain.CartItem, error) {
	for _, it := range r.items {
		if it.CartID == cartID && it.BookID == bookID {
			return it, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memCartRepo) ListItemsTx(_ context.Context, _ domain.Querier, cartID int64) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memCartRepo) CountItemsTx(ctx context.Context, q domain.Querier, cartID int64) (int, error) {
	items, _ := r.ListItemsTx(ctx, q, cartID)
	return len(items), nil
}

func (r *memCartRepo) CreateItemTx(_ context.Context, _ domain.Querier, item *domain.CartItem) error {
	item.ID = r.nextItemID
	r.nextItemID++
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *memCartRepo) UpdateItemTx(_ context.Context, _ domain.Querier, item *domain.CartItem) error {
	if _, ok := r.items[item.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *memCartRepo) DeleteItemTx(_ context.Context, _ domain.Querier, itemID int64) error {
	delete(r.items, itemID)
	return nil
}

func (r *memCartRepo) DeleteItemsByCartTx(_ context.Context, _ domain.Querier, cartID int64) error {
	for id, it := range r.items {
		if it.CartID == cartID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *memCartRepo) UpdateSnapshotsForBookTx(_ context.Context, _ domain.Querier, bookID int64, price, discount decimal.Decimal) error {
	for _, it := range r.items {
		if it.BookID == bookID {
			it.BookPrice = price
			it.Discount = discount
		}
	}
	return nil
}

func (r *memCartRepo) ListCartIDsForBookTx(_ context.Context, _ domain.Querier, bookID int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, it := range r.items {
		if it.BookID == bookID && !seen[it.CartID] {
			seen[it.CartID] = true
			out = append(out, it.CartID)
		}
	}
	return out, nil
}

type memBookRepo struct {
	books map[int64]*domain.Book
}

func (r *memBookRepo) GetByIDTx(_ context.Context, _ domain.Querier, id int64) (*domain.Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return b, nil
}

func (r *memBookRepo) GetByIDForUpdateTx(ctx context.Context, q domain.Querier, id int64) (*domain.Book, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *memBookRepo) DecrementStockTx(_ context.Context, _ domain.Querier, bookID int64, quantity int) (domain.StockDecrementOutcome, error) {
	b, ok := r.books[bookID]
	if !ok {
		return domain.StockBookMissing, nil
	}
	if b.Quantity < quantity {
		return domain.StockInsufficient, nil
	}
	b.Quantity -= quantity
	return domain.StockDecremented, nil
}

type cartFixture struct {
	service CartService
	carts   *memCartRepo
	books   *memBookRepo
}

func newCartFixture(batchSize int) *cartFixture {
	f := &cartFixture{
		carts: newMemCartRepo(),
		books: &memBookRepo{books: make(map[int64]*domain.Book)},
	}
	f.service = NewCartService(nil, passthroughTxManager{}, f.carts, f.books, batchSize, zap.NewNop())
	return f
}

func (f *cartFixture) seedBook(id int64, price, discount string, stock int) {
	f.books.books[id] = &domain.Book{
		ID:       id,
		Title:    "book",
		Price:    dec(price),
		Discount: dec(discount),
		Quantity: stock,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddBookCreatesCartAndSnapshotsPrice(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "20.00", "10", 50)

	resp, err := f.service.AddBook(context.Background(), 7, 1, 3)

	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.Equal(dec("54.00")), "got %s", resp.TotalPrice)
	require.Len(t, resp.Books, 1)
	assert.True(t, resp.Books[0].Price.Equal(dec("20.00")))
	assert.True(t, resp.Books[0].Discount.Equal(dec("10")))
	assert.Equal(t, 3, resp.Books[0].Quantity)
}

func TestAddBookDuplicate(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "10.00", "0", 50)

	_, err := f.service.AddBook(context.Background(), 7, 1, 1)
	require.NoError(t, err)

	_, err = f.service.AddBook(context.Background(), 7, 1, 2)
	assert.ErrorIs(t, err, ErrBookAlreadyInCart)
}

func TestAddBookValidation(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "10.00", "0", 2)
	f.seedBook(2, "10.00", "0", 0)

	_, err := f.service.AddBook(context.Background(), 7, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.service.AddBook(context.Background(), 7, 1, 3)
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	_, err = f.service.AddBook(context.Background(), 7, 2, 1)
	assert.ErrorIs(t, err, ErrBookUnavailable)

	_, err = f.service.AddBook(context.Background(), 7, 99, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestChangeQuantityRefreshesSnapshot(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "20.00", "10", 50)

	_, err := f.service.AddBook(context.Background(), 7, 1, 3)
	require.NoError(t, err)

	// Catalog price changes after the item was added. The next explicit
	// mutation re-reads the live book row, so the stale snapshot is replaced.
	f.seedBook(1, "25.00", "0", 50)

	resp, err := f.service.ChangeQuantity(context.Background(), 7, 1, OpIncrease)

	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.Equal(dec("100.00")), "got %s", resp.TotalPrice)
	item, err := f.carts.GetItemTx(context.Background(), nil, resp.CartID, 1)
	require.NoError(t, err)
	assert.True(t, item.BookPrice.Equal(dec("25.00")))
	assert.Equal(t, 4, item.Quantity)
}

func TestChangeQuantityDecreaseToZeroRemovesItem(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "15.00", "0", 50)

	_, err := f.service.AddBook(context.Background(), 7, 1, 1)
	require.NoError(t, err)

	resp, err := f.service.ChangeQuantity(context.Background(), 7, 1, OpDecrease)

	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.IsZero(), "got %s", resp.TotalPrice)
	assert.Empty(t, resp.Books)
	_, err = f.carts.GetItemTx(context.Background(), nil, resp.CartID, 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestChangeQuantityErrors(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "10.00", "0", 1)

	_, err := f.service.ChangeQuantity(context.Background(), 7, 1, Operation("double"))
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.service.ChangeQuantity(context.Background(), 7, 1, OpIncrease)
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = f.service.AddBook(context.Background(), 7, 1, 1)
	require.NoError(t, err)

	_, err = f.service.ChangeQuantity(context.Background(), 7, 1, OpIncrease)
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	_, err = f.service.ChangeQuantity(context.Background(), 7, 99, OpIncrease)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestRemoveBook(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "20.00", "10", 50)
	f.seedBook(2, "5.00", "0", 50)

	_, err := f.service.AddBook(context.Background(), 7, 1, 3)
	require.NoError(t, err)
	_, err = f.service.AddBook(context.Background(), 7, 2, 2)
	require.NoError(t, err)

	require.NoError(t, f.service.RemoveBook(context.Background(), 7, 2))

	resp, err := f.service.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.Equal(dec("54.00")), "got %s", resp.TotalPrice)
	assert.Len(t, resp.Books, 1)

	err = f.service.RemoveBook(context.Background(), 7, 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCountItems(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "10.00", "0", 50)

	count, err := f.service.CountItems(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = f.service.AddBook(context.Background(), 7, 1, 4)
	require.NoError(t, err)

	count, err = f.service.CountItems(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecalculateForBookRefreshesSnapshotsAndTotals(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "20.00", "10", 50)
	f.seedBook(2, "8.00", "0", 50)

	// Three users hold the book at the old price, one of them alongside an
	// unaffected second book.
	for _, userID := range []int64{1, 2, 3} {
		_, err := f.service.AddBook(context.Background(), userID, 1, 2)
		require.NoError(t, err)
	}
	_, err := f.service.AddBook(context.Background(), 1, 2, 1)
	require.NoError(t, err)

	f.seedBook(1, "30.00", "0", 50)
	require.NoError(t, f.service.RecalculateForBook(context.Background(), 1))

	for _, it := range f.carts.items {
		if it.BookID == 1 {
			assert.True(t, it.BookPrice.Equal(dec("30.00")))
			assert.True(t, it.Discount.IsZero())
		}
	}

	resp, err := f.service.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.Equal(dec("68.00")), "got %s", resp.TotalPrice)

	resp, err = f.service.GetCart(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, resp.TotalPrice.Equal(dec("60.00")), "got %s", resp.TotalPrice)
}

func TestRecalculateMatchesIncrementalTotal(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "9.99", "33", 50)
	f.seedBook(2, "20.00", "10", 50)
	f.seedBook(3, "4.50", "0", 50)

	_, err := f.service.AddBook(context.Background(), 7, 1, 1)
	require.NoError(t, err)
	_, err = f.service.AddBook(context.Background(), 7, 2, 3)
	require.NoError(t, err)
	_, err = f.service.AddBook(context.Background(), 7, 3, 2)
	require.NoError(t, err)
	_, err = f.service.ChangeQuantity(context.Background(), 7, 1, OpIncrease)
	require.NoError(t, err)

	before, err := f.service.GetCart(context.Background(), 7)
	require.NoError(t, err)

	// A full recompute with unchanged catalog data must land on the same
	// total the incremental updates produced.
	for _, bookID := range []int64{1, 2, 3} {
		require.NoError(t, f.service.RecalculateForBook(context.Background(), bookID))
	}

	after, err := f.service.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, after.TotalPrice.Equal(before.TotalPrice),
		"incremental %s vs recomputed %s", before.TotalPrice, after.TotalPrice)
}

func TestRecalculateForBookBatches(t *testing.T) {
	f := newCartFixture(2)
	f.seedBook(1, "10.00", "0", 500)

	for userID := int64(1); userID <= 5; userID++ {
		_, err := f.service.AddBook(context.Background(), userID, 1, 1)
		require.NoError(t, err)
	}

	f.seedBook(1, "12.00", "0", 500)
	require.NoError(t, f.service.RecalculateForBook(context.Background(), 1))

	for userID := int64(1); userID <= 5; userID++ {
		resp, err := f.service.GetCart(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, resp.TotalPrice.Equal(dec("12.00")), "user %d got %s", userID, resp.TotalPrice)
	}
}

func TestRecalculateForBookUnknownBook(t *testing.T) {
	f := newCartFixture(0)
	err := f.service.RecalculateForBook(context.Background(), 123)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestAddBookRolledBackOnRepoError(t *testing.T) {
	f := newCartFixture(0)
	f.seedBook(1, "10.00", "0", 50)

	boom := errors.New("insert failed")
	failing := &failingCartRepo{memCartRepo: f.carts, createItemErr: boom}
	svc := NewCartService(nil, passthroughTxManager{}, failing, f.books, 0, zap.NewNop())

	_, err := svc.AddBook(context.Background(), 7, 1, 1)
	assert.ErrorIs(t, err, boom)
}

type failingCartRepo struct {
	*memCartRepo
	createItemErr error
}

func (r *failingCartRepo) CreateItemTx(ctx context.Context, q domain.Querier, item *domain.CartItem) error {
	if r.createItemErr != nil {
		return r.createItemErr
	}
	return r.memCartRepo.CreateItemTx(ctx, q, item)
}
