package cart_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookshop/internal/app/cart"
)

type CartHandler struct {
	service cart.CartService
	logger  *zap.Logger
}

func NewCartHandler(s cart.CartService, l *zap.Logger) *CartHandler {
	return &CartHandler{service: s, logger: l}
}

type AddBookRequest struct {
	Quantity int `json:"quantity"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// userIDFromRequest reads the authenticated user set by the edge proxy.
func userIDFromRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("missing X-User-ID header")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func bookIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "bookID"), 10, 64)
}

func (h *CartHandler) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resp, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get cart", zap.Int64("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *CartHandler) CountItemsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.service.CountItems(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count cart items", zap.Int64("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, CountResponse{Count: count})
}

func (h *CartHandler) AddBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	bookID, err := bookIDFromRequest(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	req := AddBookRequest{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.AddBook(r.Context(), userID, bookID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, userID, bookID)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, resp)
}

func (h *CartHandler) ChangeQuantityHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	bookID, err := bookIDFromRequest(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	op := cart.Operation(chi.URLParam(r, "op"))

	resp, err := h.service.ChangeQuantity(r.Context(), userID, bookID, op)
	if err != nil {
		h.respondCartError(w, err, userID, bookID)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *CartHandler) RemoveBookHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	bookID, err := bookIDFromRequest(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveBook(r.Context(), userID, bookID); err != nil {
		h.respondCartError(w, err, userID, bookID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecalculateHandler is the internal hook the catalog service calls after a
// price or discount change when it cannot publish to Kafka.
func (h *CartHandler) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	bookID, err := bookIDFromRequest(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	if err := h.service.RecalculateForBook(r.Context(), bookID); err != nil {
		if errors.Is(err, cart.ErrBookNotFound) {
			http.Error(w, "Book not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to recalculate carts", zap.Int64("book_id", bookID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *CartHandler) respondCartError(w http.ResponseWriter, err error, userID, bookID int64) {
	switch {
	case errors.Is(err, cart.ErrBookNotFound):
		http.Error(w, "Book not found", http.StatusNotFound)
	case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrItemNotFound):
		http.Error(w, "Book is not in the cart", http.StatusNotFound)
	case errors.Is(err, cart.ErrBookAlreadyInCart):
		http.Error(w, "Book already in cart", http.StatusConflict)
	case errors.Is(err, cart.ErrBookUnavailable):
		http.Error(w, "Book is out of stock", http.StatusConflict)
	case errors.Is(err, cart.ErrQuantityExceedsStock):
		http.Error(w, "Requested quantity exceeds available stock", http.StatusConflict)
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Cart operation failed",
			zap.Int64("user_id", userID),
			zap.Int64("book_id", bookID),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
