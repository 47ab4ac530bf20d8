package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/observability"
	"github.com/signhub/envelope-engine/internal/queue"
	"github.com/signhub/envelope-engine/internal/repository"
	"go.uber.org/zap"
)

// BulkSendService accepts bulk send submissions and exposes batch progress.
type BulkSendService struct {
	batches     repository.BatchRepository
	lists       repository.ListRepository
	publisher   queue.Publisher
	logger      *zap.Logger
	maxAttempts int
}

func NewBulkSendService(
	batches repository.BatchRepository,
	lists repository.ListRepository,
	publisher queue.Publisher,
	maxAttempts int,
	logger *zap.Logger,
) (*BulkSendService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if lists == nil {
		return nil, fmt.Errorf("list repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BulkSendService{
		batches:     batches,
		lists:       lists,
		publisher:   publisher,
		logger:      logger,
		maxAttempts: maxAttempts,
	}, nil
}

// Submit validates and persists a new batch, then enqueues it for processing
// unless it carries a future schedule.
func (s *BulkSendService) Submit(ctx context.Context, batch *domain.BulkSendBatch) (*domain.BulkSendBatch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	batch.ID = strings.TrimSpace(batch.ID)
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	batch.Status = domain.BatchStatusPending
	batch.SentCount = 0
	batch.FailedCount = 0
	batch.AttemptCount = 0
	batch.FailureReason = nil
	if batch.MaxAttempts <= 0 {
		batch.MaxAttempts = s.maxAttempts
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.lists.GetByID(ctx, batch.ListID); err != nil {
		return nil, err
	}

	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if batch.ScheduledAt != nil && batch.ScheduledAt.After(now) {
		s.logger.Info("bulk send scheduled",
			zap.String("batchId", batch.ID),
			zap.Time("scheduledAt", *batch.ScheduledAt),
		)
		return batch, nil
	}

	msg := queue.BatchMessage{
		BatchID: batch.ID,
		ListID:  batch.ListID,
	}
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		msg.CorrelationID = correlationID
	}

	if err := s.publisher.Publish(ctx, queue.DocumentProcessingQueue, msg); err != nil {
		s.logger.Error("failed to enqueue bulk send batch",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
		reason := fmt.Sprintf("failed to enqueue batch: %v", err)
		if markErr := s.batches.MarkFailed(ctx, batch.ID, reason); markErr != nil {
			return nil, fmt.Errorf("failed to enqueue batch: %w (failed to mark as failed: %v)", err, markErr)
		}
		batch.Status = domain.BatchStatusFailed
		batch.FailureReason = &reason
		return nil, fmt.Errorf("failed to enqueue batch: %w", err)
	}

	s.logger.Info("bulk send batch enqueued",
		zap.String("batchId", batch.ID),
		zap.String("listId", batch.ListID),
	)

	return batch, nil
}

func (s *BulkSendService) GetByID(ctx context.Context, id string) (*domain.BulkSendBatch, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	return s.batches.GetByID(ctx, strings.TrimSpace(id))
}

func (s *BulkSendService) List(
	ctx context.Context,
	params repository.ListBatchesParams,
) ([]domain.BulkSendBatch, int64, error) {
	return s.batches.List(ctx, params)
}
