package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a bulk send batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusSent       BatchStatus = "SENT"
	BatchStatusFailed     BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusSent, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined for the status.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusSent || s == BatchStatusFailed
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

const DefaultMaxAttempts = 3

// BulkSendBatch is a unit of bulk-send work targeting one recipient list
// from exactly one source: a template or an existing envelope.
type BulkSendBatch struct {
	ID               string
	AccountID        string
	TemplateID       *string
	SourceEnvelopeID *string
	ListID           string
	SentCount        int
	FailedCount      int
	Status           BatchStatus
	FailureReason    *string
	AttemptCount     int
	MaxAttempts      int
	ScheduledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (b *BulkSendBatch) Validate() error {
	if strings.TrimSpace(b.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if strings.TrimSpace(b.ListID) == "" {
		return fmt.Errorf("%w: list id is required", ErrValidation)
	}
	hasTemplate := b.TemplateID != nil && strings.TrimSpace(*b.TemplateID) != ""
	hasEnvelope := b.SourceEnvelopeID != nil && strings.TrimSpace(*b.SourceEnvelopeID) != ""
	if hasTemplate && hasEnvelope {
		return fmt.Errorf("%w: template id and source envelope id are mutually exclusive", ErrValidation)
	}
	if !hasTemplate && !hasEnvelope {
		return fmt.Errorf("%w: either template id or source envelope id is required", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}

// HasTerminated reports whether the batch already reached SENT or FAILED.
func (b *BulkSendBatch) HasTerminated() bool {
	return b.Status.IsTerminal()
}

// AttemptsExhausted reports whether no further processing attempts remain.
func (b *BulkSendBatch) AttemptsExhausted() bool {
	maxAttempts := b.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return b.AttemptCount >= maxAttempts
}

// OutcomeSummary is the failure reason recorded for a batch that completed
// with at least one per-recipient failure.
func OutcomeSummary(sentCount, failedCount int) string {
	return fmt.Sprintf("Sent %d, failed %d", sentCount, failedCount)
}
