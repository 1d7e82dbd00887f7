package payment_http

import (
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"bookshop/internal/app/ipn"
	"bookshop/internal/gateway/vnpay"
)

type PaymentHandler struct {
	service     ipn.IPNService
	hashSecret  string
	frontendURL string
	logger      *zap.Logger
}

func NewPaymentHandler(s ipn.IPNService, hashSecret, frontendURL string, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, hashSecret: hashSecret, frontendURL: frontendURL, logger: l}
}

// IPNHandler is the server-to-server callback. The acknowledgement is always
// HTTP 200; the gateway reads the outcome from the RspCode field.
func (h *PaymentHandler) IPNHandler(w http.ResponseWriter, r *http.Request) {
	params := vnpay.CollectParams(r.URL.Query())
	resp := h.service.HandleIPN(r.Context(), params)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write IPN acknowledgement", zap.Error(err))
	}
}

// ReturnHandler receives the customer's browser redirect after payment. It
// only routes the user back to the storefront; order state is owned by the
// IPN callback, so the redirect carries a hint, not a verdict.
func (h *PaymentHandler) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	params := vnpay.CollectParams(r.URL.Query())

	status := "failed"
	switch {
	case !vnpay.VerifySignature(params, h.hashSecret):
		status = "invalid"
	case params[vnpay.ParamResponseCode] == "00":
		status = "success"
	}

	query := url.Values{}
	query.Set("orderCode", params[vnpay.ParamTxnRef])
	query.Set("status", status)

	h.logger.Info("Payment return redirect",
		zap.String("order_code", params[vnpay.ParamTxnRef]),
		zap.String("status", status))

	http.Redirect(w, r, h.frontendURL+"?"+query.Encode(), http.StatusFound)
}
