package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/queue"
)

func TestScheduleScannerEnqueuesDueBatches(t *testing.T) {
	t.Parallel()

	due := time.Now().UTC().Add(-time.Minute)
	batches := &fakeBatchRepo{
		getDueForScheduleFn: func(ctx context.Context, limit int) ([]domain.BulkSendBatch, error) {
			return []domain.BulkSendBatch{
				{ID: "batch-1", ListID: "list-1", ScheduledAt: &due},
				{ID: "batch-2", ListID: "list-2", ScheduledAt: &due},
			}, nil
		},
	}

	var cleared []string
	batches.clearScheduledAtFn = func(ctx context.Context, id string) error {
		cleared = append(cleared, id)
		return nil
	}

	var published []string
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.BatchMessage) error {
			if queueName != queue.DocumentProcessingQueue {
				t.Fatalf("queue = %s, want %s", queueName, queue.DocumentProcessingQueue)
			}
			published = append(published, msg.BatchID)
			return nil
		},
	}

	scanner, err := NewScheduleScanner(batches, publisher, time.Minute, 10, nil)
	if err != nil {
		t.Fatalf("NewScheduleScanner() error = %v", err)
	}

	if err := scanner.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}

	if len(published) != 2 {
		t.Fatalf("published = %v, want both due batches", published)
	}
	if len(cleared) != 2 {
		t.Fatalf("cleared = %v, want schedule markers cleared for both", cleared)
	}
}

func TestScheduleScannerKeepsMarkerOnPublishError(t *testing.T) {
	t.Parallel()

	due := time.Now().UTC().Add(-time.Minute)
	clearCalled := false
	batches := &fakeBatchRepo{
		getDueForScheduleFn: func(ctx context.Context, limit int) ([]domain.BulkSendBatch, error) {
			return []domain.BulkSendBatch{{ID: "batch-1", ListID: "list-1", ScheduledAt: &due}}, nil
		},
		clearScheduledAtFn: func(ctx context.Context, id string) error {
			clearCalled = true
			return nil
		},
	}

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.BatchMessage) error {
			return errors.New("broker unavailable")
		},
	}

	scanner, err := NewScheduleScanner(batches, publisher, time.Minute, 10, nil)
	if err != nil {
		t.Fatalf("NewScheduleScanner() error = %v", err)
	}

	if err := scanner.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v, publish failures should not abort the scan", err)
	}
	if clearCalled {
		t.Fatal("the schedule marker must survive a failed enqueue")
	}
}

func TestStaleBatchScannerRequeuesAndFails(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		getStalledFn: func(ctx context.Context, olderThan time.Time, limit int) ([]domain.BulkSendBatch, error) {
			return []domain.BulkSendBatch{
				{ID: "batch-retryable", ListID: "list-1", Status: domain.BatchStatusProcessing, AttemptCount: 1, MaxAttempts: 3},
				{ID: "batch-exhausted", ListID: "list-2", Status: domain.BatchStatusProcessing, AttemptCount: 3, MaxAttempts: 3},
			}, nil
		},
	}

	var failed []string
	batches.markFailedFn = func(ctx context.Context, id string, reason string) error {
		failed = append(failed, id)
		return nil
	}

	var published []string
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.BatchMessage) error {
			published = append(published, msg.BatchID)
			return nil
		},
	}

	scanner, err := NewStaleBatchScanner(batches, publisher, time.Minute, time.Hour, 10, nil)
	if err != nil {
		t.Fatalf("NewStaleBatchScanner() error = %v", err)
	}

	if err := scanner.scanStalled(context.Background()); err != nil {
		t.Fatalf("scanStalled() error = %v", err)
	}

	if len(published) != 1 || published[0] != "batch-retryable" {
		t.Fatalf("published = %v, want only the retryable batch", published)
	}
	if len(failed) != 1 || failed[0] != "batch-exhausted" {
		t.Fatalf("failed = %v, want only the exhausted batch", failed)
	}
}

func TestStaleBatchScannerRequiresThreshold(t *testing.T) {
	t.Parallel()

	_, err := NewStaleBatchScanner(&fakeBatchRepo{}, &fakePublisher{}, time.Minute, 0, 10, nil)
	if err == nil {
		t.Fatal("NewStaleBatchScanner() should reject a zero stale threshold")
	}
}
