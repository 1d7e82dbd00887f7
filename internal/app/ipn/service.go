// Package ipn processes the payment gateway's server-to-server callback.
// The callback comes from an untrusted caller, can arrive out of order and
// more than once, and must leave money, inventory and cart state consistent
// regardless.
package ipn

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookshop/internal/domain"
	"bookshop/internal/gateway/vnpay"
	"bookshop/internal/infrastructure/database"
	"bookshop/internal/repository/book_repo"
	"bookshop/internal/repository/cart_repo"
	"bookshop/internal/repository/order_repo"
	"bookshop/internal/repository/outbox_repo"
	"bookshop/internal/repository/payment_repo"
)

// Response is the acknowledgement body the gateway expects. Anything other
// than RspCode "00" makes the gateway retry the notification.
type Response struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type IPNService interface {
	HandleIPN(ctx context.Context, params map[string]string) *Response
}

type ipnService struct {
	txm            database.TxManager
	orders         order_repo.OrderRepository
	payments       payment_repo.PaymentRepository
	books          book_repo.BookRepository
	carts          cart_repo.CartRepository
	outbox         OutboxWriter
	hashSecret     string
	orderPaidTopic string
	logger         *zap.Logger
}

// OutboxWriter records the order-paid event in the same transaction that
// confirms the payment.
type OutboxWriter interface {
	WriteOrderPaidTx(ctx context.Context, q domain.Querier, topic string, event *domain.OrderPaidEvent) error
}

func NewIPNService(
	txm database.TxManager,
	orders order_repo.OrderRepository,
	payments payment_repo.PaymentRepository,
	books book_repo.BookRepository,
	carts cart_repo.CartRepository,
	outbox OutboxWriter,
	hashSecret string,
	orderPaidTopic string,
	logger *zap.Logger,
) IPNService {
	return &ipnService{
		txm:            txm,
		orders:         orders,
		payments:       payments,
		books:          books,
		carts:          carts,
		outbox:         outbox,
		hashSecret:     hashSecret,
		orderPaidTopic: orderPaidTopic,
		logger:         logger,
	}
}

// HandleIPN verifies, reconciles and applies a gateway callback. It always
// returns a gateway acknowledgement, never an error: internal failures map
// to RspCode "99" so the gateway retries later.
func (s *ipnService) HandleIPN(ctx context.Context, params map[string]string) *Response {
	// The signature is checked before any database read keyed by
	// caller-supplied identifiers; nothing in params is trusted until then.
	if !vnpay.VerifySignature(params, s.hashSecret) {
		s.logger.Warn("IPN rejected: invalid signature",
			zap.String("txn_ref", params[vnpay.ParamTxnRef]))
		return &Response{RspCode: vnpay.RspInvalidSignature, Message: "Invalid signature"}
	}

	orderCode := params[vnpay.ParamTxnRef]
	if orderCode == "" {
		return &Response{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
	}

	responseCode := params[vnpay.ParamResponseCode]
	txnStatus := params[vnpay.ParamTxnStatus]
	txnID := params[vnpay.ParamTransactionNo]
	amount, _ := strconv.ParseInt(params[vnpay.ParamAmount], 10, 64)

	var response *Response
	err := s.txm.WithinTx(ctx, func(q domain.Querier) error {
		// The order row lock is held for the remainder of the handler; a
		// concurrent duplicate delivery blocks here and then observes the
		// terminal state.
		order, err := s.orders.GetByCodeForUpdateTx(ctx, q, orderCode)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response = &Response{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
				return nil
			}
			return err
		}

		payment, err := s.payments.GetByIDTx(ctx, q, order.PaymentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response = &Response{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
				return nil
			}
			return err
		}

		// Any terminal state means this callback was already processed; a
		// redelivery is acknowledged without re-applying side effects.
		if order.PaymentStatus != domain.OrderPaymentPending {
			message := "Payment already processed"
			if order.PaymentStatus == domain.OrderPaymentPaid {
				message = "Order already confirmed"
			}
			s.logger.Info("IPN duplicate delivery for settled order",
				zap.String("order_code", orderCode),
				zap.String("payment_status", string(order.PaymentStatus)))
			response = &Response{RspCode: vnpay.RspSuccess, Message: message}
			return nil
		}

		now := time.Now()

		if responseCode != "00" || txnStatus != "00" {
			if err := payment.MarkFailed("Payment failed: "+responseCode+"/"+txnStatus, now); err != nil {
				return err
			}
			if err := order.MarkPaymentFailed(now); err != nil {
				return err
			}
			if err := s.payments.UpdateStatusTx(ctx, q, payment); err != nil {
				return err
			}
			if err := s.orders.UpdatePaymentStatusTx(ctx, q, order); err != nil {
				return err
			}
			s.logger.Info("IPN recorded failed payment",
				zap.String("order_code", orderCode),
				zap.String("response_code", responseCode),
				zap.String("transaction_status", txnStatus))
			// The gateway still gets a success code so it stops retrying.
			response = &Response{RspCode: vnpay.RspSuccess, Message: "Payment failed"}
			return nil
		}

		expectedAmount := order.TotalAmountVND * 100
		if amount != expectedAmount {
			s.logger.Warn("IPN rejected: amount mismatch",
				zap.String("order_code", orderCode),
				zap.Int64("reported", amount),
				zap.Int64("expected", expectedAmount))
			response = &Response{RspCode: vnpay.RspInvalidAmount, Message: "Invalid amount"}
			return nil
		}

		if err := s.applyPaidEffects(ctx, q, order, payment, txnID, now); err != nil {
			return err
		}
		response = &Response{RspCode: vnpay.RspSuccess, Message: "Confirm success"}
		return nil
	})
	if err != nil {
		s.logger.Error("IPN processing failed",
			zap.String("order_code", orderCode),
			zap.Error(err))
		return &Response{RspCode: vnpay.RspUnknownError, Message: "Unknown error"}
	}
	return response
}

// applyPaidEffects runs the success branch inside the caller's transaction:
// stock decrements, cart teardown, status transitions, outbox event.
func (s *ipnService) applyPaidEffects(ctx context.Context, q domain.Querier, order *domain.Order, payment *domain.Payment, txnID string, now time.Time) error {
	items, err := s.orders.ListItemsTx(ctx, q, order.ID)
	if err != nil {
		return err
	}

	// A confirmed payment is never rolled back over stock bookkeeping;
	// discrepancies are logged for manual reconciliation instead.
	for _, item := range items {
		outcome, err := s.books.DecrementStockTx(ctx, q, item.BookID, item.Quantity)
		if err != nil {
			return err
		}
		switch outcome {
		case domain.StockBookMissing:
			s.logger.Warn("Stock discrepancy: book missing at fulfillment",
				zap.String("order_code", order.OrderCode),
				zap.Int64("book_id", item.BookID),
				zap.Int("quantity", item.Quantity))
		case domain.StockInsufficient:
			s.logger.Warn("Stock discrepancy: insufficient stock at fulfillment",
				zap.String("order_code", order.OrderCode),
				zap.Int64("book_id", item.BookID),
				zap.Int("quantity", item.Quantity))
		}
	}

	cart, err := s.carts.GetByUserIDForUpdateTx(ctx, q, order.UserID)
	if err == nil {
		if err := s.carts.DeleteItemsByCartTx(ctx, q, cart.ID); err != nil {
			return err
		}
		if err := s.carts.UpdateTotalTx(ctx, q, cart.ID, decimal.Zero); err != nil {
			return err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if err := payment.MarkSuccess(txnID, "Payment success", now); err != nil {
		return err
	}
	if err := order.MarkPaid(now); err != nil {
		return err
	}
	if err := s.payments.UpdateStatusTx(ctx, q, payment); err != nil {
		return err
	}
	if err := s.orders.UpdatePaymentStatusTx(ctx, q, order); err != nil {
		return err
	}

	if err := s.outbox.WriteOrderPaidTx(ctx, q, s.orderPaidTopic, &domain.OrderPaidEvent{
		OrderCode:    order.OrderCode,
		OrderID:      order.ID,
		UserID:       order.UserID,
		AmountVND:    order.TotalAmountVND,
		GatewayTxnID: txnID,
		PaidAt:       now,
	}); err != nil {
		return err
	}

	s.logger.Info("IPN confirmed payment",
		zap.String("order_code", order.OrderCode),
		zap.String("gateway_txn_id", txnID),
		zap.Int64("amount_vnd", order.TotalAmountVND))
	return nil
}

// outboxWriter is the production OutboxWriter backed by the outbox table.
type outboxWriter struct {
	repo outbox_repo.OutboxRepository
}

func NewOutboxWriter(repo outbox_repo.OutboxRepository) OutboxWriter {
	return &outboxWriter{repo: repo}
}

func (w *outboxWriter) WriteOrderPaidTx(ctx context.Context, q domain.Querier, topic string, event *domain.OrderPaidEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.repo.CreateMessageTx(ctx, q, &outbox_repo.OutboxMessage{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Status:    outbox_repo.StatusPending,
		CreatedAt: time.Now(),
	})
}
