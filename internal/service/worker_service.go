package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/observability"
	"github.com/signhub/envelope-engine/internal/queue"
	"github.com/signhub/envelope-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency  = 1
	defaultAttemptTimeout = time.Hour
)

// BatchProcessor runs one processing attempt for a batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID string, listID string) error
}

// BatchLease is a time-bounded ownership claim on a batch, preventing two
// workers from processing the same batch concurrently.
type BatchLease interface {
	Acquire(ctx context.Context, batchID string) (string, error)
	Release(ctx context.Context, batchID string, token string) error
}

// WorkerService consumes the document-processing queue and drives batch
// attempts, enforcing the lease, the per-attempt timeout, and the attempt
// budget with its terminal-failure hook.
type WorkerService struct {
	batches        repository.BatchRepository
	processor      BatchProcessor
	consumer       queue.Consumer
	lease          BatchLease
	logger         *zap.Logger
	metrics        *observability.Metrics
	concurrency    int
	attemptTimeout time.Duration
}

func NewWorkerService(
	batches repository.BatchRepository,
	processor BatchProcessor,
	consumer queue.Consumer,
	lease BatchLease,
	concurrency int,
	attemptTimeout time.Duration,
	logger *zap.Logger,
) (*WorkerService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("batch processor is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		batches:        batches,
		processor:      processor,
		consumer:       consumer,
		lease:          lease,
		logger:         logger,
		concurrency:    concurrency,
		attemptTimeout: attemptTimeout,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the work queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DocumentProcessingQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.DocumentProcessingQueue, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// processMessage handles one queue delivery. A returned error nacks the
// message back onto the queue; nil acks it.
func (s *WorkerService) processMessage(ctx context.Context, msg queue.BatchMessage) error {
	log := s.logger.With(zap.String("batchId", msg.BatchID))
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
		log = log.With(zap.String("correlationId", msg.CorrelationID))
	}

	batch, err := s.batches.GetByID(ctx, msg.BatchID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("batch not found, dropping message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	if batch.Status == domain.BatchStatusSent {
		log.Info("batch already sent, dropping message")
		return nil
	}

	var leaseToken string
	if s.lease != nil {
		leaseToken, err = s.lease.Acquire(ctx, msg.BatchID)
		if err != nil {
			return fmt.Errorf("failed to acquire batch lease: %w", err)
		}
		if leaseToken == "" {
			// Another worker owns the batch; this delivery is a duplicate.
			log.Warn("batch is owned by another worker, dropping message")
			return nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if releaseErr := s.lease.Release(releaseCtx, msg.BatchID, leaseToken); releaseErr != nil {
				log.Warn("failed to release batch lease", zap.Error(releaseErr))
			}
		}()
	}

	attempt, err := s.batches.IncrementAttemptCount(ctx, msg.BatchID)
	if err != nil {
		return fmt.Errorf("failed to increment attempt count: %w", err)
	}

	maxAttempts := batch.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	if attempt > maxAttempts {
		s.failPermanently(ctx, log, msg.BatchID, fmt.Errorf("processing attempts exhausted after %d runs", attempt-1))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	log.Info("batch attempt started",
		zap.Int("attempt", attempt),
		zap.Int("maxAttempts", maxAttempts),
	)

	runErr := s.processor.ProcessBatch(runCtx, msg.BatchID, msg.ListID)
	if runErr == nil {
		return nil
	}

	if attempt >= maxAttempts {
		s.failPermanently(ctx, log, msg.BatchID, runErr)
		return nil
	}

	log.Warn("batch attempt failed, requeueing",
		zap.Int("attempt", attempt),
		zap.Error(runErr),
	)
	return runErr
}

// failPermanently is the terminal-failure hook: once the attempt budget is
// spent the batch must not stay in PROCESSING, whatever the terminal error
// was. The message is acked afterwards.
func (s *WorkerService) failPermanently(ctx context.Context, log *zap.Logger, batchID string, cause error) {
	log.Error("batch failed permanently", zap.Error(cause))

	if err := s.batches.MarkFailed(ctx, batchID, cause.Error()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return
		}
		log.Error("failed to mark exhausted batch as failed", zap.Error(err))
		return
	}

	if s.metrics != nil {
		s.metrics.IncBatchCompleted(domain.BatchStatusFailed.String())
	}
}
