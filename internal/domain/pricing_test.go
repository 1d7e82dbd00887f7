package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount string
		quantity int
		want     string
	}{
		{"no discount", "20.00", "0", 2, "40.00"},
		{"ten percent discount", "20.00", "10", 3, "54.00"},
		{"full discount", "15.50", "100", 4, "0.00"},
		{"rounds to two places", "9.99", "33", 1, "6.69"},
		{"zero quantity", "20.00", "10", 0, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineTotal(dec(tt.price), dec(tt.discount), tt.quantity)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCartTotal(t *testing.T) {
	items := []*CartItem{
		{BookID: 1, Quantity: 3, BookPrice: dec("20.00"), Discount: dec("10")},
		{BookID: 2, Quantity: 1, BookPrice: dec("9.99"), Discount: dec("0")},
	}
	assert.True(t, CartTotal(items).Equal(dec("63.99")))
}

func TestCartTotalEmpty(t *testing.T) {
	assert.True(t, CartTotal(nil).IsZero())
}

func TestPaymentStatusTransitionsAreTerminal(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	now := p.CreatedAt

	assert.NoError(t, p.MarkSuccess("14400001", "Payment success", now))
	assert.Equal(t, PaymentStatusSuccess, p.Status)
	assert.ErrorIs(t, p.MarkFailed("late failure", now), ErrPaymentTerminal)
	assert.ErrorIs(t, p.MarkSuccess("again", "dup", now), ErrPaymentTerminal)

	p = &Payment{Status: PaymentStatusPending}
	assert.NoError(t, p.MarkFailed("Payment failed: 24/02", now))
	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.ErrorIs(t, p.MarkSuccess("txn", "msg", now), ErrPaymentTerminal)
}

func TestOrderPaymentStatusMirrorsPayment(t *testing.T) {
	o := &Order{PaymentStatus: OrderPaymentPending}
	now := o.CreatedAt

	assert.NoError(t, o.MarkPaid(now))
	assert.Equal(t, OrderPaymentPaid, o.PaymentStatus)
	assert.NotNil(t, o.PaidAt)
	assert.Error(t, o.MarkPaid(now))
	assert.Error(t, o.MarkPaymentFailed(now))
}
