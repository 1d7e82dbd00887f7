package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"bookshop/internal/domain"
	"bookshop/internal/fx"
	"bookshop/internal/gateway/vnpay"
	"bookshop/internal/infrastructure/database"
	"bookshop/internal/repository/address_repo"
	"bookshop/internal/repository/book_repo"
	"bookshop/internal/repository/cart_repo"
	"bookshop/internal/repository/order_repo"
	"bookshop/internal/repository/payment_repo"
)

var (
	ErrCartEmpty       = errors.New("cart empty")
	ErrAddressNotFound = errors.New("address not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidCartItem = errors.New("invalid cart item")
	ErrOrderNotFound   = errors.New("order not found")
)

const (
	paymentMethodVNPay = "VNPAY"
	gatewayNameVNPay   = "VNPAY"
	catalogCurrency    = "USD"
	gatewayCurrency    = "VND"
)

type CheckoutService interface {
	// Checkout converts the user's cart into an immutable order plus a
	// pending payment and returns the signed gateway redirect URL. The cart
	// itself is left untouched; it is only cleared once the gateway confirms
	// the payment.
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	GetOrderStatus(ctx context.Context, orderCode string) (*OrderStatusResponse, error)
}

type checkoutService struct {
	db        domain.Querier
	txm       database.TxManager
	carts     cart_repo.CartRepository
	books     book_repo.BookRepository
	orders    order_repo.OrderRepository
	payments  payment_repo.PaymentRepository
	addresses address_repo.AddressRepository
	users     address_repo.UserRepository
	converter fx.Converter
	vnpConfig vnpay.Config
	logger    *zap.Logger
}

func NewCheckoutService(
	db domain.Querier,
	txm database.TxManager,
	carts cart_repo.CartRepository,
	books book_repo.BookRepository,
	orders order_repo.OrderRepository,
	payments payment_repo.PaymentRepository,
	addresses address_repo.AddressRepository,
	users address_repo.UserRepository,
	converter fx.Converter,
	vnpConfig vnpay.Config,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		db:        db,
		txm:       txm,
		carts:     carts,
		books:     books,
		orders:    orders,
		payments:  payments,
		addresses: addresses,
		users:     users,
		converter: converter,
		vnpConfig: vnpConfig,
		logger:    logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	var (
		order     *domain.Order
		amountVND int64
	)

	// Everything database-visible happens in one transaction; the FX call
	// runs inside it so a conversion failure leaves no order, order items or
	// payment behind.
	err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
		user, err := s.users.GetByIDTx(ctx, q, req.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		address, err := s.addresses.GetUserAddressTx(ctx, q, req.AddressID, req.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAddressNotFound
			}
			return err
		}

		cart, err := s.carts.GetByUserIDForUpdateTx(ctx, q, req.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCartEmpty
			}
			return err
		}
		items, err := s.carts.ListItemsTx(ctx, q, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		orderItems := make([]*domain.OrderItem, 0, len(items))
		for _, item := range items {
			if _, err := s.books.GetByIDTx(ctx, q, item.BookID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrInvalidCartItem
				}
				return err
			}
			orderItems = append(orderItems, &domain.OrderItem{
				BookID:           item.BookID,
				Quantity:         item.Quantity,
				Discount:         item.Discount,
				OrderedBookPrice: item.BookPrice,
			})
		}

		payment := &domain.Payment{
			Method:      paymentMethodVNPay,
			GatewayName: gatewayNameVNPay,
			Status:      domain.PaymentStatusPending,
		}
		if err := s.payments.CreateTx(ctx, q, payment); err != nil {
			return err
		}

		now := time.Now()
		order = &domain.Order{
			UserID:        user.ID,
			Email:         user.Email,
			OrderCode:     ulid.Make().String(),
			PaymentID:     payment.ID,
			AddressID:     address.ID,
			TotalAmount:   cart.TotalPrice,
			OrderStatus:   domain.OrderStatusAccepted,
			PaymentStatus: domain.OrderPaymentPending,
			OrderDate:     now,
		}
		if err := s.orders.CreateTx(ctx, q, order); err != nil {
			return err
		}

		for _, item := range orderItems {
			item.OrderID = order.ID
		}
		if err := s.orders.CreateItemsTx(ctx, q, orderItems); err != nil {
			return err
		}

		amountVND, err = s.converter.Convert(ctx, cart.TotalPrice, catalogCurrency, gatewayCurrency)
		if err != nil {
			s.logger.Error("Currency conversion failed, aborting checkout",
				zap.Int64("user_id", req.UserID),
				zap.String("order_code", order.OrderCode),
				zap.Error(err))
			return err
		}
		order.TotalAmountVND = amountVND

		if err := s.orders.UpdateConvertedAmountTx(ctx, q, order.ID, amountVND); err != nil {
			return err
		}
		return s.payments.UpdateAmountTx(ctx, q, payment.ID, amountVND)
	})
	if err != nil {
		return nil, err
	}

	redirectURL := vnpay.BuildPaymentURL(s.vnpConfig, vnpay.PaymentRequest{
		AmountMinor: amountVND * 100,
		OrderCode:   order.OrderCode,
		OrderInfo:   "Thanh toan don hang #" + order.OrderCode,
		IPAddr:      req.ClientIP,
		CreateDate:  time.Now(),
	})

	s.logger.Info("Checkout created pending order",
		zap.Int64("user_id", req.UserID),
		zap.String("order_code", order.OrderCode),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int64("amount_vnd", amountVND))

	return &CheckoutResponse{
		RedirectURL: redirectURL,
		OrderCode:   order.OrderCode,
	}, nil
}

func (s *checkoutService) GetOrderStatus(ctx context.Context, orderCode string) (*OrderStatusResponse, error) {
	order, err := s.orders.GetByCodeTx(ctx, s.db, orderCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to get order status", zap.String("order_code", orderCode), zap.Error(err))
		return nil, fmt.Errorf("failed to get order %s: %w", orderCode, err)
	}
	return &OrderStatusResponse{
		OrderCode:     order.OrderCode,
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: string(order.PaymentStatus),
		PaidAt:        order.PaidAt,
	}, nil
}
