package checkout_http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookshop/internal/app/checkout"
)

type CheckoutHandler struct {
	service checkout.CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(s checkout.CheckoutService, l *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: s, logger: l}
}

type CheckoutBody struct {
	AddressID int64 `json:"addressId"`
}

func (h *CheckoutHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.Header.Get("X-User-ID")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body CheckoutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Checkout(r.Context(), &checkout.CheckoutRequest{
		UserID:    userID,
		AddressID: body.AddressID,
		ClientIP:  clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrCartEmpty):
			http.Error(w, "Cart is empty", http.StatusUnprocessableEntity)
		case errors.Is(err, checkout.ErrAddressNotFound):
			http.Error(w, "Address not found", http.StatusNotFound)
		case errors.Is(err, checkout.ErrUserNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, checkout.ErrInvalidCartItem):
			http.Error(w, "Cart contains an unavailable book", http.StatusConflict)
		default:
			h.logger.Error("Checkout failed", zap.Int64("user_id", userID), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *CheckoutHandler) OrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderCode := chi.URLParam(r, "orderCode")
	if orderCode == "" {
		http.Error(w, "Order code is required", http.StatusBadRequest)
		return
	}

	status, err := h.service.GetOrderStatus(r.Context(), orderCode)
	if err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get order status", zap.String("order_code", orderCode), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// clientIP prefers the proxy-forwarded address; the gateway displays it on
// the payment page and includes it in fraud screening.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
