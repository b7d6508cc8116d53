package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/queue"
	"github.com/campaignkit/drip-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusWorker consumes provider delivery-status events and folds them
// into the dispatch log.
type StatusWorker struct {
	consumer    queue.Consumer
	dispatches  repository.DispatchLogRepository
	logger      *zap.Logger
	concurrency int
}

func NewStatusWorker(consumer queue.Consumer, dispatches repository.DispatchLogRepository, concurrency int, logger *zap.Logger) (*StatusWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if dispatches == nil {
		return nil, fmt.Errorf("dispatch log repository is required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusWorker{
		consumer:    consumer,
		dispatches:  dispatches,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start runs the consumers until the context is cancelled.
func (w *StatusWorker) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			err := w.consumer.Consume(ctx, queue.StatusQueue, w.handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// handle applies one event. A nil return acks; an error nacks for
// redelivery, so only transient store failures return an error.
func (w *StatusWorker) handle(ctx context.Context, event queue.StatusEvent) error {
	status, ok := event.DispatchStatus()
	if !ok {
		// Intermediate provider states (queued, sending) carry no
		// information the log needs.
		w.logger.Debug("ignoring delivery-status event",
			zap.String("providerMessageId", event.ProviderMessageID),
			zap.String("messageStatus", event.MessageStatus),
		)
		return nil
	}

	var errMsg *string
	if event.ErrorCode != "" {
		msg := fmt.Sprintf("provider error code %s", event.ErrorCode)
		errMsg = &msg
	}

	err := w.dispatches.ApplyProviderStatus(ctx, event.ProviderMessageID, status, errMsg)
	if errors.Is(err, domain.ErrNotFound) {
		// Callbacks can outrace the outcome write that records the
		// provider message id, or reference messages sent elsewhere.
		w.logger.Warn("delivery-status event matched no dispatch",
			zap.String("providerMessageId", event.ProviderMessageID),
			zap.String("messageStatus", event.MessageStatus),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply delivery status: %w", err)
	}

	w.logger.Info("applied delivery status",
		zap.String("providerMessageId", event.ProviderMessageID),
		zap.String("status", status.String()),
		zap.Time("occurredAt", event.OccurredAt),
	)
	return nil
}

// DirectStatusApplier folds delivery-status events straight into the
// dispatch log. It stands in for the broker pipeline when no broker is
// configured.
type DirectStatusApplier struct {
	worker *StatusWorker
}

func NewDirectStatusApplier(dispatches repository.DispatchLogRepository, logger *zap.Logger) (*DirectStatusApplier, error) {
	if dispatches == nil {
		return nil, fmt.Errorf("dispatch log repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectStatusApplier{
		worker: &StatusWorker{dispatches: dispatches, logger: logger},
	}, nil
}

func (a *DirectStatusApplier) Publish(ctx context.Context, event queue.StatusEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	return a.worker.handle(ctx, event)
}

// StatusPublisher wraps the queue publisher with validation and a
// timestamp default for events coming off the HTTP edge.
type StatusPublisher struct {
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewStatusPublisher(publisher queue.Publisher, logger *zap.Logger) (*StatusPublisher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusPublisher{publisher: publisher, logger: logger, now: time.Now}, nil
}

func (p *StatusPublisher) Publish(ctx context.Context, event queue.StatusEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	if err := p.publisher.Publish(ctx, queue.StatusQueue, event); err != nil {
		return fmt.Errorf("failed to publish delivery-status event: %w", err)
	}
	return nil
}
