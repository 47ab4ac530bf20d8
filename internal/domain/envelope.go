package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnvelopeStatus represents the lifecycle state of an envelope. Only the
// states this pipeline produces are modeled; the full signing state machine
// lives elsewhere.
type EnvelopeStatus string

const (
	EnvelopeStatusDraft EnvelopeStatus = "DRAFT"
	EnvelopeStatusSent  EnvelopeStatus = "SENT"
)

func (s EnvelopeStatus) String() string { return string(s) }

func (s EnvelopeStatus) IsValid() bool {
	switch s {
	case EnvelopeStatusDraft, EnvelopeStatusSent:
		return true
	}
	return false
}

// RecipientPayload is the signer data attached to a materialized envelope.
type RecipientPayload struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	RoleName     string            `json:"roleName"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// Envelope is a signable document package addressed to its recipients.
// Envelopes produced by bulk send carry the originating batch id.
type Envelope struct {
	ID           string
	AccountID    string
	BulkBatchID  *string
	SenderUserID string
	EmailSubject string
	EmailMessage string
	Status       EnvelopeStatus
	Recipients   []RecipientPayload
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e *Envelope) Validate() error {
	if strings.TrimSpace(e.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if strings.TrimSpace(e.EmailSubject) == "" {
		return fmt.Errorf("%w: email subject is required", ErrValidation)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: invalid envelope status %q", ErrValidation, e.Status)
	}
	return nil
}

// Template is a reusable envelope blueprint owned by an account user.
type Template struct {
	ID          string
	AccountID   string
	OwnerUserID string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
