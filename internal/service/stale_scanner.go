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
	defaultStaleScanInterval = time.Minute
	defaultStaleScanLimit    = 50
)

// StaleBatchScanner recovers batches stuck in PROCESSING after a worker died
// mid-run: batches with attempts remaining are re-enqueued, the rest are
// failed so nothing stays in PROCESSING forever.
type StaleBatchScanner struct {
	batches    repository.BatchRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	staleAfter time.Duration
	limit      int
}

func NewStaleBatchScanner(
	batches repository.BatchRepository,
	publisher queue.Publisher,
	interval time.Duration,
	staleAfter time.Duration,
	limit int,
	logger *zap.Logger,
) (*StaleBatchScanner, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultStaleScanInterval
	}
	if staleAfter <= 0 {
		return nil, fmt.Errorf("stale threshold must be positive")
	}
	if limit <= 0 {
		limit = defaultStaleScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StaleBatchScanner{
		batches:    batches,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		limit:      limit,
	}, nil
}

func (s *StaleBatchScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanStalled(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("stale batch scan failed", zap.Error(err))
			}
		}
	}
}

func (s *StaleBatchScanner) scanStalled(ctx context.Context) error {
	cutoff := time.Now().Add(-s.staleAfter)
	stalled, err := s.batches.GetStalled(ctx, cutoff, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch stalled batches: %w", err)
	}

	for i := range stalled {
		batch := stalled[i]

		if batch.AttemptsExhausted() {
			reason := fmt.Sprintf("processing stalled after %d attempts", batch.AttemptCount)
			if err := s.batches.MarkFailed(ctx, batch.ID, reason); err != nil {
				s.logger.Error("failed to fail stalled batch",
					zap.String("batchId", batch.ID),
					zap.Error(err),
				)
			} else {
				s.logger.Warn("stalled batch marked as failed",
					zap.String("batchId", batch.ID),
					zap.Int("attemptCount", batch.AttemptCount),
				)
			}
			continue
		}

		msg := queue.BatchMessage{
			BatchID: batch.ID,
			ListID:  batch.ListID,
		}
		if err := s.publisher.Publish(ctx, queue.DocumentProcessingQueue, msg); err != nil {
			s.logger.Error("failed to re-enqueue stalled batch",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("stalled batch re-enqueued",
			zap.String("batchId", batch.ID),
			zap.Int("attemptCount", batch.AttemptCount),
		)
	}

	return nil
}
