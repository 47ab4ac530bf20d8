package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/observability"
	"github.com/signhub/envelope-engine/internal/ratelimit"
	"github.com/signhub/envelope-engine/internal/repository"
	"github.com/signhub/envelope-engine/internal/sender"
	"go.uber.org/zap"
)

// Orchestrator drives one bulk send batch to a terminal state: it fans out
// one envelope per recipient, sends each through the delivery gateway, and
// accounts the outcome on the batch.
type Orchestrator struct {
	batches      repository.BatchRepository
	lists        repository.ListRepository
	results      repository.ResultRepository
	uow          repository.UnitOfWork
	materializer *Materializer
	sender       sender.Sender
	rateLimiter  ratelimit.RateLimiter
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewOrchestrator(
	batches repository.BatchRepository,
	lists repository.ListRepository,
	results repository.ResultRepository,
	uow repository.UnitOfWork,
	materializer *Materializer,
	envelopeSender sender.Sender,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if batches == nil || lists == nil || results == nil {
		return nil, fmt.Errorf("batch, list, and result repositories are required")
	}
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	if materializer == nil {
		return nil, fmt.Errorf("materializer is required")
	}
	if envelopeSender == nil {
		return nil, fmt.Errorf("envelope sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		batches:      batches,
		lists:        lists,
		results:      results,
		uow:          uow,
		materializer: materializer,
		sender:       envelopeSender,
		rateLimiter:  rateLimiter,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// ProcessBatch processes one batch to completion. Configuration errors mark
// the batch FAILED and return nil so the message is acked and never retried;
// systemic errors mark the batch FAILED and propagate so the host retry
// policy applies. One recipient's failure never aborts the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batchID string, listID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := observability.WithContextLogger(o.logger, ctx).With(zap.String("batchId", batchID))

	batch, err := o.batches.GetByID(ctx, batchID)
	if errors.Is(err, domain.ErrNotFound) {
		// A missing batch is a permanent data error, not a transient fault.
		log.Warn("batch not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	if batch.Status == domain.BatchStatusSent {
		log.Info("batch already sent, skipping")
		return nil
	}

	if err := o.batches.MarkProcessing(ctx, batchID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Info("batch was sent before processing started")
			return nil
		}
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to mark batch as processing: %w", err))
	}

	log.Info("batch processing started",
		zap.String("listId", listID),
		zap.Int("attempt", batch.AttemptCount),
	)

	list, err := o.lists.GetWithValidRecipients(ctx, listID)
	if errors.Is(err, domain.ErrNotFound) {
		return o.failConfiguration(ctx, log, batchID, fmt.Sprintf("bulk send list %s not found", listID))
	}
	if err != nil {
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to load recipient list: %w", err))
	}

	source, err := o.materializer.ResolveSource(ctx, batch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return o.failConfiguration(ctx, log, batchID, err.Error())
		}
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to resolve batch source: %w", err))
	}

	prior, err := o.priorMarkers(ctx, batchID)
	if err != nil {
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to load recipient results: %w", err))
	}

	if o.metrics != nil {
		o.metrics.IncBatchInFlight()
		defer o.metrics.DecBatchInFlight()
	}

	for i := range list.Recipients {
		recipient := list.Recipients[i]

		if prior[recipient.Email] == domain.ResultStatusSent {
			log.Info("recipient already sent on a prior attempt, skipping",
				zap.String("recipientEmail", recipient.Email),
			)
			continue
		}

		// A canceled or timed-out run is a systemic failure, not a string of
		// per-recipient ones.
		if ctx.Err() != nil {
			return o.failAndRaise(ctx, log, batchID, fmt.Errorf("batch run aborted: %w", ctx.Err()))
		}

		// A rate limiter failure is an infrastructure outage, not this
		// recipient's delivery failing.
		if o.rateLimiter != nil {
			if err := o.rateLimiter.Wait(ctx, batch.AccountID); err != nil {
				return o.failAndRaise(ctx, log, batchID, fmt.Errorf("rate limiter wait failed: %w", err))
			}
		}

		if err := o.processRecipient(ctx, batch, source, recipient); err != nil {
			if ctx.Err() != nil {
				return o.failAndRaise(ctx, log, batchID, fmt.Errorf("batch run aborted: %w", ctx.Err()))
			}

			log.Error("failed to send envelope to recipient",
				zap.String("recipientEmail", recipient.Email),
				zap.Error(err),
			)
			counted := prior[recipient.Email] == domain.ResultStatusFailed
			if recordErr := o.recordFailure(ctx, batchID, recipient.Email, err, counted); recordErr != nil {
				return o.failAndRaise(ctx, log, batchID, recordErr)
			}
			if o.metrics != nil {
				o.metrics.IncEnvelopeFailed(failureReason(err))
			}
			continue
		}

		if err := o.batches.IncrementSentCount(ctx, batchID); err != nil {
			return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to increment sent count: %w", err))
		}
		if o.metrics != nil {
			o.metrics.IncEnvelopeSent()
		}
		log.Info("envelope sent",
			zap.String("recipientEmail", recipient.Email),
		)
	}

	return o.finalize(ctx, log, batchID)
}

// processRecipient creates and sends one recipient's envelope inside a single
// transaction. Any failure rolls the whole scope back so no half-created
// envelope persists.
func (o *Orchestrator) processRecipient(
	ctx context.Context,
	batch *domain.BulkSendBatch,
	source domain.BatchSource,
	recipient domain.BulkSendRecipient,
) error {
	return o.uow.Do(ctx, func(repos repository.TxRepos) error {
		envelope, err := o.materializer.BuildEnvelope(batch, source, recipient)
		if err != nil {
			return err
		}

		if err := repos.Envelopes.Create(ctx, envelope); err != nil {
			return fmt.Errorf("failed to create envelope: %w", err)
		}

		sendStart := o.now()
		_, sendErr := o.sender.Send(ctx, *envelope)
		if o.metrics != nil {
			o.metrics.ObserveEnvelopeSendDuration(o.now().Sub(sendStart))
		}
		if sendErr != nil {
			return sendErr
		}

		if err := repos.Envelopes.UpdateStatus(ctx, envelope.ID, domain.EnvelopeStatusSent); err != nil {
			return fmt.Errorf("failed to mark envelope as sent: %w", err)
		}

		envelopeID := envelope.ID
		return repos.Results.Upsert(ctx, &domain.RecipientResult{
			BatchID:        batch.ID,
			RecipientEmail: recipient.Email,
			EnvelopeID:     &envelopeID,
			Status:         domain.ResultStatusSent,
			CreatedAt:      o.now().UTC(),
		})
	})
}

// recordFailure accounts one recipient's delivery failure. A recipient that
// already carries a FAILED marker from a prior attempt keeps a single place in
// the failed count.
func (o *Orchestrator) recordFailure(
	ctx context.Context,
	batchID string,
	recipientEmail string,
	sendErr error,
	previouslyFailed bool,
) error {
	if !previouslyFailed {
		if err := o.batches.IncrementFailedCount(ctx, batchID); err != nil {
			return fmt.Errorf("failed to increment failed count: %w", err)
		}
	}

	message := sendErr.Error()
	if err := o.results.Upsert(ctx, &domain.RecipientResult{
		BatchID:        batchID,
		RecipientEmail: recipientEmail,
		Status:         domain.ResultStatusFailed,
		Error:          &message,
		CreatedAt:      o.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record recipient failure: %w", err)
	}

	return nil
}

// finalize derives the batch's terminal state and counters from the recipient
// result markers. The markers carry one row per recipient regardless of how
// many attempts it took, so the totals stay exact where the incremental
// counters can drift across interrupted or retried runs.
func (o *Orchestrator) finalize(ctx context.Context, log *zap.Logger, batchID string) error {
	results, err := o.results.GetByBatch(ctx, batchID)
	if err != nil {
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to load recipient results for finalization: %w", err))
	}

	sent, failed := 0, 0
	for i := range results {
		switch results[i].Status {
		case domain.ResultStatusSent:
			sent++
		case domain.ResultStatusFailed:
			failed++
		}
	}

	if err := o.batches.UpdateCounts(ctx, batchID, sent, failed); err != nil {
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to reconcile batch counters: %w", err))
	}

	if failed == 0 {
		if err := o.batches.MarkSent(ctx, batchID); err != nil {
			return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to mark batch as sent: %w", err))
		}
		if o.metrics != nil {
			o.metrics.IncBatchCompleted(domain.BatchStatusSent.String())
		}
		log.Info("batch completed",
			zap.Int("sentCount", sent),
		)
		return nil
	}

	summary := domain.OutcomeSummary(sent, failed)
	if err := o.batches.MarkFailed(ctx, batchID, summary); err != nil {
		return o.failAndRaise(ctx, log, batchID, fmt.Errorf("failed to mark batch as failed: %w", err))
	}
	if o.metrics != nil {
		o.metrics.IncBatchCompleted(domain.BatchStatusFailed.String())
	}
	log.Warn("batch completed with failures",
		zap.Int("sentCount", sent),
		zap.Int("failedCount", failed),
	)
	return nil
}

// failConfiguration terminates the batch for an invalid configuration and
// acks the message: retrying cannot fix a misconfigured batch.
func (o *Orchestrator) failConfiguration(ctx context.Context, log *zap.Logger, batchID string, reason string) error {
	log.Warn("batch configuration error",
		zap.String("reason", reason),
	)
	if err := o.batches.MarkFailed(ctx, batchID, reason); err != nil && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("failed to mark misconfigured batch as failed: %w", err)
	}
	if o.metrics != nil {
		o.metrics.IncBatchCompleted(domain.BatchStatusFailed.String())
	}
	return nil
}

// failAndRaise marks the batch FAILED best-effort and re-raises the systemic
// error so the job framework's retry policy applies.
func (o *Orchestrator) failAndRaise(ctx context.Context, log *zap.Logger, batchID string, cause error) error {
	if err := o.batches.MarkFailed(ctx, batchID, cause.Error()); err != nil && !errors.Is(err, domain.ErrConflict) {
		log.Error("failed to mark batch as failed after systemic error", zap.Error(err))
	}
	log.Error("batch processing aborted", zap.Error(cause))
	return cause
}

// priorMarkers returns each recipient's outcome from earlier attempts, keyed
// by email.
func (o *Orchestrator) priorMarkers(ctx context.Context, batchID string) (map[string]domain.ResultStatus, error) {
	results, err := o.results.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	markers := make(map[string]domain.ResultStatus, len(results))
	for i := range results {
		markers[results[i].RecipientEmail] = results[i].Status
	}
	return markers, nil
}

func failureReason(err error) string {
	if sender.IsTransient(err) {
		return "transient_error"
	}
	return "permanent_error"
}
