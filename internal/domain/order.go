package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusAccepted OrderStatus = "ACCEPTED"
)

type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "PENDING"
	OrderPaymentPaid    OrderPaymentStatus = "PAID"
	OrderPaymentFailed  OrderPaymentStatus = "FAILED"
)

// Order is an immutable snapshot of a cart taken at checkout. Only the
// status fields change afterwards, exactly once, when the gateway callback
// arrives.
type Order struct {
	ID             int64
	UserID         int64
	Email          string
	OrderCode      string
	PaymentID      int64
	AddressID      int64
	TotalAmount    decimal.Decimal
	TotalAmountVND int64
	OrderStatus    OrderStatus
	PaymentStatus  OrderPaymentStatus
	PaidAt         *time.Time
	OrderDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is an immutable copy of a cart item; the order stays priced
// exactly as checkout saw it regardless of later catalog changes.
type OrderItem struct {
	ID               int64
	OrderID          int64
	BookID           int64
	Quantity         int
	Discount         decimal.Decimal
	OrderedBookPrice decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (o *Order) MarkPaid(now time.Time) error {
	if o.PaymentStatus != OrderPaymentPending {
		return errors.New("order payment status is terminal")
	}
	o.PaymentStatus = OrderPaymentPaid
	o.PaidAt = &now
	o.UpdatedAt = now
	return nil
}

func (o *Order) MarkPaymentFailed(now time.Time) error {
	if o.PaymentStatus != OrderPaymentPending {
		return errors.New("order payment status is terminal")
	}
	o.PaymentStatus = OrderPaymentFailed
	o.UpdatedAt = now
	return nil
}
