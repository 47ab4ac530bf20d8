package domain

import "time"

// ResultStatus is the terminal outcome recorded for one recipient of a batch.
type ResultStatus string

const (
	ResultStatusSent   ResultStatus = "SENT"
	ResultStatusFailed ResultStatus = "FAILED"
)

func (s ResultStatus) String() string { return string(s) }

// RecipientResult is the per-recipient completion marker persisted during a
// processing run. A retried attempt consults these markers so recipients that
// already received an envelope are not sent to again.
type RecipientResult struct {
	BatchID        string
	RecipientEmail string
	EnvelopeID     *string
	Status         ResultStatus
	Error          *string
	CreatedAt      time.Time
}
