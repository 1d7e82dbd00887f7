package domain

import (
	"errors"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Payment is one-to-one with an order. It is created PENDING at checkout and
// transitions exactly once to SUCCESS or FAILED via the IPN handler.
type Payment struct {
	ID              int64
	Method          string
	GatewayName     string
	GatewayTxnID    string
	Status          PaymentStatus
	ResponseMessage string
	AmountVND       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var ErrPaymentTerminal = errors.New("payment already in terminal state")

func (p *Payment) MarkSuccess(txnID, message string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrPaymentTerminal
	}
	p.Status = PaymentStatusSuccess
	p.GatewayTxnID = txnID
	p.ResponseMessage = message
	p.UpdatedAt = now
	return nil
}

func (p *Payment) MarkFailed(message string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrPaymentTerminal
	}
	p.Status = PaymentStatusFailed
	p.ResponseMessage = message
	p.UpdatedAt = now
	return nil
}
