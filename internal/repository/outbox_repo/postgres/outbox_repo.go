package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookshop/internal/domain"
	"bookshop/internal/repository/outbox_repo"
)

type pgOutboxRepository struct{}

func NewOutboxRepository() outbox_repo.OutboxRepository {
	return &pgOutboxRepository{}
}

func (r *pgOutboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *outbox_repo.OutboxMessage) error {
	query := `INSERT INTO outbox_messages (id, topic, payload, status, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := querier.ExecContext(ctx, query, msg.ID, msg.Topic, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func (r *pgOutboxRepository) GetUnsentMessages(ctx context.Context, querier domain.Querier, limit int) ([]*outbox_repo.OutboxMessage, error) {
	query := `SELECT id, topic, payload, status, created_at, sent_at FROM outbox_messages
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := querier.QueryContext(ctx, query, outbox_repo.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsent outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox_repo.OutboxMessage
	for rows.Next() {
		msg := &outbox_repo.OutboxMessage{}
		var sentAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.Status, &msg.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return messages, nil
}

func (r *pgOutboxRepository) MarkMessageSent(ctx context.Context, querier domain.Querier, id string) error {
	query := `UPDATE outbox_messages SET status = $1, sent_at = $2 WHERE id = $3 AND status = $4`
	_, err := querier.ExecContext(ctx, query, outbox_repo.StatusSent, time.Now(), id, outbox_repo.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	}
	return nil
}
