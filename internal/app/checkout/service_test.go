package checkout

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshop/internal/domain"
	"bookshop/internal/gateway/vnpay"
)

const testSecret = "CHECKOUTTESTSECRET"

type passthroughTxManager struct{}

func (passthroughTxManager) WithinTx(_ context.Context, fn func(q domain.Querier) error) error {
	return fn(nil)
}

type fakeCartRepo struct {
	cart  *domain.Cart
	items []*domain.CartItem
}

func (r *fakeCartRepo) GetByUserIDTx(_ context.Context, _ domain.Querier, userID int64) (*domain.Cart, error) {
	if r.cart == nil || r.cart.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return r.cart, nil
}

func (r *fakeCartRepo) GetByUserIDForUpdateTx(ctx context.Context, q domain.Querier, userID int64) (*domain.Cart, error) {
	return r.GetByUserIDTx(ctx, q, userID)
}

func (r *fakeCartRepo) GetByIDForUpdateTx(context.Context, domain.Querier, int64) (*domain.Cart, error) {
	panic("not used")
}

func (r *fakeCartRepo) CreateTx(context.Context, domain.Querier, *domain.Cart) error {
	panic("not used")
}

func (r *fakeCartRepo) UpdateTotalTx(context.Context, domain.Querier, int64, decimal.Decimal) error {
	panic("not used")
}

func (r *fakeCartRepo) GetItemTx(context.Context, domain.Querier, int64, int64) (*domain.CartItem, error) {
	panic("not used")
}

func (r *fakeCartRepo) ListItemsTx(_ context.Context, _ domain.Querier, cartID int64) ([]*domain.CartItem, error) {
	return r.items, nil
}

func (r *fakeCartRepo) CountItemsTx(context.Context, domain.Querier, int64) (int, error) {
	panic("not used")
}

func (r *fakeCartRepo) CreateItemTx(context.Context, domain.Querier, *domain.CartItem) error {
	panic("not used")
}

func (r *fakeCartRepo) UpdateItemTx(context.Context, domain.Querier, *domain.CartItem) error {
	panic("not used")
}

func (r *fakeCartRepo) DeleteItemTx(context.Context, domain.Querier, int64) error {
	panic("not used")
}

func (r *fakeCartRepo) DeleteItemsByCartTx(context.Context, domain.Querier, int64) error {
	panic("not used")
}

func (r *fakeCartRepo) UpdateSnapshotsForBookTx(context.Context, domain.Querier, int64, decimal.Decimal, decimal.Decimal) error {
	panic("not used")
}

func (r *fakeCartRepo) ListCartIDsForBookTx(context.Context, domain.Querier, int64) ([]int64, error) {
	panic("not used")
}

type fakeBookRepo struct {
	known map[int64]bool
}

func (r *fakeBookRepo) GetByIDTx(_ context.Context, _ domain.Querier, id int64) (*domain.Book, error) {
	if !r.known[id] {
		return nil, sql.ErrNoRows
	}
	return &domain.Book{ID: id}, nil
}

func (r *fakeBookRepo) GetByIDForUpdateTx(ctx context.Context, q domain.Querier, id int64) (*domain.Book, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *fakeBookRepo) DecrementStockTx(context.Context, domain.Querier, int64, int) (domain.StockDecrementOutcome, error) {
	panic("not used")
}

type fakeOrderRepo struct {
	nextID   int64
	created  []*domain.Order
	items    []*domain.OrderItem
	amounts  map[int64]int64
	statuses map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		nextID:   1,
		amounts:  make(map[int64]int64),
		statuses: make(map[string]*domain.Order),
	}
}

func (r *fakeOrderRepo) CreateTx(_ context.Context, _ domain.Querier, order *domain.Order) error {
	order.ID = r.nextID
	r.nextID++
	r.created = append(r.created, order)
	r.statuses[order.OrderCode] = order
	return nil
}

func (r *fakeOrderRepo) CreateItemsTx(_ context.Context, _ domain.Querier, items []*domain.OrderItem) error {
	r.items = append(r.items, items...)
	return nil
}

func (r *fakeOrderRepo) GetByCodeTx(_ context.Context, _ domain.Querier, code string) (*domain.Order, error) {
	order, ok := r.statuses[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return order, nil
}

func (r *fakeOrderRepo) GetByCodeForUpdateTx(ctx context.Context, q domain.Querier, code string) (*domain.Order, error) {
	return r.GetByCodeTx(ctx, q, code)
}

func (r *fakeOrderRepo) ListItemsTx(context.Context, domain.Querier, int64) ([]*domain.OrderItem, error) {
	panic("not used")
}

func (r *fakeOrderRepo) UpdateConvertedAmountTx(_ context.Context, _ domain.Querier, orderID, amountVND int64) error {
	r.amounts[orderID] = amountVND
	return nil
}

func (r *fakeOrderRepo) UpdatePaymentStatusTx(context.Context, domain.Querier, *domain.Order) error {
	panic("not used")
}

type fakePaymentRepo struct {
	nextID  int64
	created []*domain.Payment
	amounts map[int64]int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{nextID: 1, amounts: make(map[int64]int64)}
}

func (r *fakePaymentRepo) CreateTx(_ context.Context, _ domain.Querier, payment *domain.Payment) error {
	payment.ID = r.nextID
	r.nextID++
	r.created = append(r.created, payment)
	return nil
}

func (r *fakePaymentRepo) GetByIDTx(context.Context, domain.Querier, int64) (*domain.Payment, error) {
	panic("not used")
}

func (r *fakePaymentRepo) UpdateStatusTx(context.Context, domain.Querier, *domain.Payment) error {
	panic("not used")
}

func (r *fakePaymentRepo) UpdateAmountTx(_ context.Context, _ domain.Querier, id, amountVND int64) error {
	r.amounts[id] = amountVND
	return nil
}

type fakeAddressRepo struct {
	addresses map[int64]*domain.Address
}

func (r *fakeAddressRepo) GetUserAddressTx(_ context.Context, _ domain.Querier, addressID, userID int64) (*domain.Address, error) {
	addr, ok := r.addresses[addressID]
	if !ok || addr.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return addr, nil
}

type fakeUserRepo struct {
	users map[int64]*domain.User
}

func (r *fakeUserRepo) GetByIDTx(_ context.Context, _ domain.Querier, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type fakeConverter struct {
	amountVND int64
	err       error
	calls     int
}

func (c *fakeConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (int64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.amountVND, nil
}

type checkoutFixture struct {
	service   CheckoutService
	carts     *fakeCartRepo
	orders    *fakeOrderRepo
	payments  *fakePaymentRepo
	converter *fakeConverter
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		carts:     &fakeCartRepo{},
		orders:    newFakeOrderRepo(),
		payments:  newFakePaymentRepo(),
		converter: &fakeConverter{amountVND: 1350000},
	}
	books := &fakeBookRepo{known: map[int64]bool{1: true, 2: true}}
	addresses := &fakeAddressRepo{addresses: map[int64]*domain.Address{
		5: {ID: 5, UserID: 7, Line: "12 Hang Bac", City: "Hanoi"},
	}}
	users := &fakeUserRepo{users: map[int64]*domain.User{
		7: {ID: 7, Email: "reader@example.com"},
	}}
	f.service = NewCheckoutService(
		nil, passthroughTxManager{}, f.carts, books, f.orders, f.payments,
		addresses, users, f.converter,
		vnpay.Config{
			TmnCode:    "TESTTMN",
			HashSecret: testSecret,
			GatewayURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "https://shop.example.com/payment/vnpay/return",
		},
		zap.NewNop(),
	)
	return f
}

func (f *checkoutFixture) seedCart() {
	f.carts.cart = &domain.Cart{ID: 3, UserID: 7, TotalPrice: decimal.RequireFromString("54.00")}
	f.carts.items = []*domain.CartItem{
		{ID: 1, CartID: 3, BookID: 1, Quantity: 3, Discount: decimal.RequireFromString("10"), BookPrice: decimal.RequireFromString("20.00")},
	}
}

func TestCheckoutSuccess(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()

	resp, err := f.service.Checkout(context.Background(), &CheckoutRequest{
		UserID: 7, AddressID: 5, ClientIP: "203.0.113.9",
	})
	require.NoError(t, err)

	require.Len(t, f.orders.created, 1)
	order := f.orders.created[0]
	assert.Equal(t, resp.OrderCode, order.OrderCode)
	assert.Equal(t, domain.OrderStatusAccepted, order.OrderStatus)
	assert.Equal(t, domain.OrderPaymentPending, order.PaymentStatus)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("54.00")))
	assert.Equal(t, "reader@example.com", order.Email)

	// The order code must parse as a ULID.
	_, err = ulid.ParseStrict(order.OrderCode)
	assert.NoError(t, err)

	// Order items copy the cart's snapshot, not the live catalog row.
	require.Len(t, f.orders.items, 1)
	assert.True(t, f.orders.items[0].OrderedBookPrice.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, f.orders.items[0].Discount.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, order.ID, f.orders.items[0].OrderID)

	assert.Equal(t, int64(1350000), f.orders.amounts[order.ID])
	require.Len(t, f.payments.created, 1)
	assert.Equal(t, int64(1350000), f.payments.amounts[f.payments.created[0].ID])
	assert.Equal(t, domain.PaymentStatusPending, f.payments.created[0].Status)
}

func TestCheckoutRedirectURLSignatureVerifies(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()

	resp, err := f.service.Checkout(context.Background(), &CheckoutRequest{
		UserID: 7, AddressID: 5, ClientIP: "203.0.113.9",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(resp.RedirectURL)
	require.NoError(t, err)
	params := vnpay.CollectParams(parsed.Query())
	assert.True(t, vnpay.VerifySignature(params, testSecret))

	// Gateway amount is the converted VND total in minor units.
	assert.Equal(t, strconv.FormatInt(1350000*100, 10), params[vnpay.ParamAmount])
	assert.Equal(t, resp.OrderCode, params[vnpay.ParamTxnRef])
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	assert.ErrorIs(t, err, ErrCartEmpty)

	f.carts.cart = &domain.Cart{ID: 3, UserID: 7}
	_, err = f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Empty(t, f.orders.created)
}

func TestCheckoutUnknownUserAndAddress(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()

	_, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 99, AddressID: 5})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 99})
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestCheckoutVanishedBook(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()
	f.carts.items = append(f.carts.items, &domain.CartItem{
		ID: 2, CartID: 3, BookID: 404, Quantity: 1,
		Discount: decimal.Zero, BookPrice: decimal.RequireFromString("5.00"),
	})

	_, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	assert.ErrorIs(t, err, ErrInvalidCartItem)
}

func TestCheckoutConversionFailureAborts(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()
	f.converter.err = errors.New("rate provider down")

	_, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})

	// The transaction callback fails, so the real transaction manager rolls
	// back the order and payment writes made before the conversion.
	require.Error(t, err)
	assert.Equal(t, 1, f.converter.calls)
}

func TestCheckoutDistinctOrderCodes(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()

	first, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	require.NoError(t, err)
	second, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderCode, second.OrderCode)
	assert.Len(t, f.orders.created, 2)
}

func TestGetOrderStatus(t *testing.T) {
	f := newCheckoutFixture()
	f.seedCart()

	resp, err := f.service.Checkout(context.Background(), &CheckoutRequest{UserID: 7, AddressID: 5})
	require.NoError(t, err)

	status, err := f.service.GetOrderStatus(context.Background(), resp.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, resp.OrderCode, status.OrderCode)
	assert.Equal(t, string(domain.OrderPaymentPending), status.PaymentStatus)
	assert.Nil(t, status.PaidAt)

	_, err = f.service.GetOrderStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
