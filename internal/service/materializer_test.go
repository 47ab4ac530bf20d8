package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/signhub/envelope-engine/internal/domain"
)

func TestMaterializerResolveTemplateSource(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, &fakeTemplateRepo{}, newFakeEnvelopeRepo())

	templateID := "tmpl-1"
	source, err := m.ResolveSource(context.Background(), &domain.BulkSendBatch{
		ID:         "batch-1",
		AccountID:  "acct-1",
		TemplateID: &templateID,
	})
	if err != nil {
		t.Fatalf("ResolveSource() error = %v", err)
	}
	if source.Kind != domain.SourceKindTemplate {
		t.Fatalf("kind = %s, want TEMPLATE", source.Kind)
	}
	if source.Template == nil || source.Template.ID != "tmpl-1" {
		t.Fatalf("template = %+v, want tmpl-1", source.Template)
	}
}

func TestMaterializerResolveMissingTemplate(t *testing.T) {
	t.Parallel()

	templates := &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return nil, domain.ErrNotFound
		},
	}
	m := newTestMaterializer(t, templates, newFakeEnvelopeRepo())

	templateID := "tmpl-missing"
	_, err := m.ResolveSource(context.Background(), &domain.BulkSendBatch{
		ID:         "batch-1",
		TemplateID: &templateID,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResolveSource() error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "tmpl-missing") {
		t.Fatalf("error = %v, want the template id in the message", err)
	}
}

func TestMaterializerResolveNoSourceConfigured(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, &fakeTemplateRepo{}, newFakeEnvelopeRepo())

	_, err := m.ResolveSource(context.Background(), &domain.BulkSendBatch{ID: "batch-1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ResolveSource() error = %v, want ErrValidation", err)
	}
}

func TestMaterializerBuildEnvelopeFromTemplate(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, &fakeTemplateRepo{}, newFakeEnvelopeRepo())

	source, err := domain.TemplateSource(&domain.Template{
		ID:          "tmpl-1",
		AccountID:   "acct-1",
		OwnerUserID: "user-9",
		Name:        "Offer Letter",
	})
	if err != nil {
		t.Fatalf("TemplateSource() error = %v", err)
	}

	envelope, err := m.BuildEnvelope(
		&domain.BulkSendBatch{ID: "batch-1", AccountID: "acct-1"},
		source,
		domain.BulkSendRecipient{
			Name:         "Alice",
			Email:        "alice@example.com",
			CustomFields: map[string]string{"employeeId": "E-42"},
		},
	)
	if err != nil {
		t.Fatalf("BuildEnvelope() error = %v", err)
	}

	if envelope.ID == "" {
		t.Fatal("envelope id should be generated")
	}
	if envelope.Status != domain.EnvelopeStatusDraft {
		t.Fatalf("status = %s, want DRAFT", envelope.Status)
	}
	if envelope.SenderUserID != "user-9" {
		t.Fatalf("sender user = %s, want the template owner", envelope.SenderUserID)
	}
	if envelope.EmailSubject != "Offer Letter" {
		t.Fatalf("subject = %q, want the template name", envelope.EmailSubject)
	}
	if envelope.BulkBatchID == nil || *envelope.BulkBatchID != "batch-1" {
		t.Fatal("envelope should carry the batch id")
	}

	if len(envelope.Recipients) != 1 {
		t.Fatalf("recipients = %d, want 1", len(envelope.Recipients))
	}
	signer := envelope.Recipients[0]
	if signer.Email != "alice@example.com" || signer.RoleName != "Signer" {
		t.Fatalf("signer = %+v, want alice as Signer", signer)
	}
	if signer.CustomFields["employeeId"] != "E-42" {
		t.Fatal("custom fields should be carried onto the signer payload")
	}
}

func TestMaterializerBuildEnvelopeFromUnresolvedSource(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, &fakeTemplateRepo{}, newFakeEnvelopeRepo())

	_, err := m.BuildEnvelope(
		&domain.BulkSendBatch{ID: "batch-1", AccountID: "acct-1"},
		domain.BatchSource{Kind: domain.SourceKindTemplate},
		domain.BulkSendRecipient{Name: "Alice", Email: "alice@example.com"},
	)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("BuildEnvelope() error = %v, want ErrValidation", err)
	}
}

func newTestMaterializer(t *testing.T, templates *fakeTemplateRepo, envelopes *fakeEnvelopeRepo) *Materializer {
	t.Helper()

	m, err := NewMaterializer(templates, envelopes)
	if err != nil {
		t.Fatalf("NewMaterializer() error = %v", err)
	}
	return m
}
