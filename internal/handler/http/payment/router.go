package payment_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookshop/internal/app/ipn"
)

func RegisterRoutes(r chi.Router, s ipn.IPNService, hashSecret, frontendURL string, l *zap.Logger) {
	handler := NewPaymentHandler(s, hashSecret, frontendURL, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/payment/vnpay", func(r chi.Router) {
		r.Get("/ipn", handler.IPNHandler)
		r.Get("/return", handler.ReturnHandler)
	})
}
