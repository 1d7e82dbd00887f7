package checkout

import "time"

type CheckoutRequest struct {
	UserID    int64
	AddressID int64
	ClientIP  string
}

type CheckoutResponse struct {
	RedirectURL string `json:"data"`
	OrderCode   string `json:"orderCode"`
}

type OrderStatusResponse struct {
	OrderCode     string     `json:"orderCode"`
	OrderStatus   string     `json:"orderStatus"`
	PaymentStatus string     `json:"paymentStatus"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}
