// Package outbox relays committed events to Kafka. Messages are written to
// the outbox table in the same transaction as the state change they report,
// then published asynchronously by the processor. Delivery is at-least-once;
// consumers are expected to deduplicate on the event payload.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookshop/internal/domain"
	kafkaInfra "bookshop/internal/infrastructure/kafka"
	"bookshop/internal/repository/outbox_repo"
)

const pollBatchSize = 10

type Processor struct {
	db           domain.Querier
	repo         outbox_repo.OutboxRepository
	producer     kafkaInfra.Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

func NewProcessor(
	db domain.Querier,
	repo outbox_repo.OutboxRepository,
	producer kafkaInfra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:           db,
		repo:         repo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.processPending(ctx)
			}
		}
	}()
}

// Stop signals the poll loop and waits for the in-flight batch to finish.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping outbox processor")
		close(p.stop)
	})
	<-p.done
}

func (p *Processor) processPending(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	messages, err := p.repo.GetUnsentMessages(pollCtx, p.db, pollBatchSize)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Info("Found pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := p.producer.Produce(ctx, msg.Topic, msg.Payload); err != nil {
			// Leave the message PENDING; the next poll retries it.
			p.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}
		if err := p.repo.MarkMessageSent(ctx, p.db, msg.ID); err != nil {
			p.logger.Error("Failed to mark outbox message sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		p.logger.Info("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("topic", msg.Topic))
	}
}
