package domain

import (
	"errors"
	"testing"
)

func TestBatchStatusParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    BatchStatus
		wantErr bool
	}{
		{input: "PENDING", want: BatchStatusPending},
		{input: "processing", want: BatchStatusProcessing},
		{input: " sent ", want: BatchStatusSent},
		{input: "FAILED", want: BatchStatusFailed},
		{input: "CANCELED", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseBatchStatusFromString(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseBatchStatusFromString(%q) error = %v, want ErrValidation", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBatchStatusFromString(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBatchStatusFromString(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestBatchStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if BatchStatusPending.IsTerminal() || BatchStatusProcessing.IsTerminal() {
		t.Fatal("PENDING and PROCESSING are not terminal")
	}
	if !BatchStatusSent.IsTerminal() || !BatchStatusFailed.IsTerminal() {
		t.Fatal("SENT and FAILED are terminal")
	}
}

func TestBulkSendBatchValidateRequiresExactlyOneSource(t *testing.T) {
	t.Parallel()

	templateID := "tmpl-1"
	envelopeID := "env-1"

	batch := BulkSendBatch{
		AccountID: "acct-1",
		ListID:    "list-1",
		Status:    BatchStatusPending,
	}

	if err := batch.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with no source error = %v, want ErrValidation", err)
	}

	batch.TemplateID = &templateID
	if err := batch.Validate(); err != nil {
		t.Fatalf("Validate() with template error = %v", err)
	}

	batch.SourceEnvelopeID = &envelopeID
	if err := batch.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with both sources error = %v, want ErrValidation", err)
	}

	batch.TemplateID = nil
	if err := batch.Validate(); err != nil {
		t.Fatalf("Validate() with envelope source error = %v", err)
	}
}

func TestBulkSendBatchValidateRequiredFields(t *testing.T) {
	t.Parallel()

	templateID := "tmpl-1"

	batch := BulkSendBatch{TemplateID: &templateID, ListID: "list-1", Status: BatchStatusPending}
	if err := batch.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() without account error = %v, want ErrValidation", err)
	}

	batch = BulkSendBatch{AccountID: "acct-1", TemplateID: &templateID, Status: BatchStatusPending}
	if err := batch.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() without list error = %v, want ErrValidation", err)
	}

	batch = BulkSendBatch{AccountID: "acct-1", TemplateID: &templateID, ListID: "list-1", Status: "UNKNOWN"}
	if err := batch.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with bad status error = %v, want ErrValidation", err)
	}
}

func TestAttemptsExhausted(t *testing.T) {
	t.Parallel()

	batch := BulkSendBatch{AttemptCount: 2, MaxAttempts: 3}
	if batch.AttemptsExhausted() {
		t.Fatal("two of three attempts should leave budget")
	}

	batch.AttemptCount = 3
	if !batch.AttemptsExhausted() {
		t.Fatal("three of three attempts should be exhausted")
	}

	// Zero max attempts falls back to the default budget.
	batch = BulkSendBatch{AttemptCount: DefaultMaxAttempts}
	if !batch.AttemptsExhausted() {
		t.Fatal("default budget should apply when max attempts is unset")
	}
}

func TestOutcomeSummary(t *testing.T) {
	t.Parallel()

	if got := OutcomeSummary(2, 1); got != "Sent 2, failed 1" {
		t.Fatalf("OutcomeSummary(2, 1) = %q", got)
	}
	if got := OutcomeSummary(0, 5); got != "Sent 0, failed 5" {
		t.Fatalf("OutcomeSummary(0, 5) = %q", got)
	}
}
