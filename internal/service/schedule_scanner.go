package service

import (
	"context"
	"fmt"
	"time"

	"github.com/signhub/envelope-engine/internal/queue"
	"github.com/signhub/envelope-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultScheduleScanInterval = 15 * time.Second
	defaultScheduleScanLimit    = 100
)

// ScheduleScanner periodically enqueues batches whose scheduled send time is
// due.
type ScheduleScanner struct {
	batches   repository.BatchRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
}

func NewScheduleScanner(
	batches repository.BatchRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*ScheduleScanner, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultScheduleScanInterval
	}
	if limit <= 0 {
		limit = defaultScheduleScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ScheduleScanner{
		batches:   batches,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
	}, nil
}

func (s *ScheduleScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due batches do not wait for the first
	// ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("schedule scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("schedule scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *ScheduleScanner) scanDue(ctx context.Context) error {
	dueBatches, err := s.batches.GetDueForSchedule(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due scheduled batches: %w", err)
	}

	for i := range dueBatches {
		batch := dueBatches[i]
		msg := queue.BatchMessage{
			BatchID: batch.ID,
			ListID:  batch.ListID,
		}

		if err := s.publisher.Publish(ctx, queue.DocumentProcessingQueue, msg); err != nil {
			s.logger.Error("failed to enqueue scheduled batch",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.batches.ClearScheduledAt(ctx, batch.ID); err != nil {
			s.logger.Error("failed to clear schedule marker after enqueue",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("scheduled batch enqueued", zap.String("batchId", batch.ID))
	}

	return nil
}
