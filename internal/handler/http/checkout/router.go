package checkout_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookshop/internal/app/checkout"
)

func RegisterRoutes(r chi.Router, s checkout.CheckoutService, l *zap.Logger) {
	handler := NewCheckoutHandler(s, l.With(zap.String("component", "CheckoutHTTPHandler")))

	r.Post("/checkout", handler.CheckoutHandler)
	r.Get("/orders/{orderCode}/status", handler.OrderStatusHandler)
}
