package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bookshop/internal/app/cart"
	"bookshop/internal/domain"
	kafka_infra "bookshop/internal/infrastructure/kafka"
)

// BookUpdatedMessageHandler reacts to catalog price/discount changes by
// resyncing every cart that holds the book. Malformed payloads are dropped;
// processing failures are returned so the message is redelivered.
func BookUpdatedMessageHandler(cartService cart.CartService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, value []byte) error {
		var event domain.BookUpdatedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			logger.Error("Failed to unmarshal book updated event",
				zap.ByteString("value", value),
				zap.Error(err))
			return nil
		}

		logger.Info("Processing book updated event",
			zap.Int64("book_id", event.BookID),
			zap.String("price", event.Price),
			zap.String("discount", event.Discount))

		if err := cartService.RecalculateForBook(ctx, event.BookID); err != nil {
			if errors.Is(err, cart.ErrBookNotFound) {
				// The book was deleted between the event and now; nothing to
				// recalculate.
				logger.Warn("Book updated event for unknown book", zap.Int64("book_id", event.BookID))
				return nil
			}
			return fmt.Errorf("failed to recalculate carts for book %d: %w", event.BookID, err)
		}
		return nil
	}
}
