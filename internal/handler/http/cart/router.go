package cart_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookshop/internal/app/cart"
)

func RegisterRoutes(r chi.Router, s cart.CartService, l *zap.Logger) {
	handler := NewCartHandler(s, l.With(zap.String("component", "CartHTTPHandler")))

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCartHandler)
		r.Get("/count", handler.CountItemsHandler)
		r.Post("/items/{bookID}", handler.AddBookHandler)
		r.Patch("/items/{bookID}/{op}", handler.ChangeQuantityHandler)
		r.Delete("/items/{bookID}", handler.RemoveBookHandler)
	})

	r.Post("/internal/books/{bookID}/recalculate", handler.RecalculateHandler)
}
