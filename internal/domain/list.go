package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// BulkSendList is an account-owned collection of recipients targeted by a batch.
type BulkSendList struct {
	ID         string
	AccountID  string
	Name       string
	Recipients []BulkSendRecipient
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BulkSendRecipient is a single named email target within a list. Custom
// fields are merged into the recipient payload during envelope materialization.
type BulkSendRecipient struct {
	ID           string
	ListID       string
	Name         string
	Email        string
	CustomFields map[string]string
	CreatedAt    time.Time
}

func (r *BulkSendRecipient) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: recipient name is required", ErrValidation)
	}
	if !r.HasValidEmail() {
		return fmt.Errorf("%w: invalid recipient email %q", ErrValidation, r.Email)
	}
	return nil
}

// HasValidEmail reports whether the recipient carries a syntactically valid,
// non-empty email address. Recipients failing this check are filtered out
// before batch processing starts.
func (r *BulkSendRecipient) HasValidEmail() bool {
	trimmed := strings.TrimSpace(r.Email)
	if trimmed == "" {
		return false
	}
	addr, err := mail.ParseAddress(trimmed)
	return err == nil && addr.Address == trimmed
}
