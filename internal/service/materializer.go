package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/repository"
)

const signerRoleName = "Signer"

// Materializer produces fresh envelopes for bulk send recipients, either from
// a template or by cloning the metadata of an existing source envelope.
type Materializer struct {
	templates repository.TemplateRepository
	envelopes repository.EnvelopeRepository
}

func NewMaterializer(
	templates repository.TemplateRepository,
	envelopes repository.EnvelopeRepository,
) (*Materializer, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if envelopes == nil {
		return nil, fmt.Errorf("envelope repository is required")
	}

	return &Materializer{
		templates: templates,
		envelopes: envelopes,
	}, nil
}

// ResolveSource loads the batch's configured source exactly once per
// processing run. An unresolvable source is a configuration error for the
// whole batch, never a per-recipient one.
func (m *Materializer) ResolveSource(ctx context.Context, batch *domain.BulkSendBatch) (domain.BatchSource, error) {
	if batch == nil {
		return domain.BatchSource{}, fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	hasTemplate := batch.TemplateID != nil && *batch.TemplateID != ""
	hasEnvelope := batch.SourceEnvelopeID != nil && *batch.SourceEnvelopeID != ""

	switch {
	case hasTemplate && hasEnvelope:
		return domain.BatchSource{}, fmt.Errorf("%w: batch specifies both a template and a source envelope", domain.ErrValidation)
	case hasTemplate:
		template, err := m.templates.GetByID(ctx, *batch.TemplateID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.BatchSource{}, fmt.Errorf("%w: template %s not found", domain.ErrNotFound, *batch.TemplateID)
		}
		if err != nil {
			return domain.BatchSource{}, err
		}
		return domain.TemplateSource(template)
	case hasEnvelope:
		envelope, err := m.envelopes.GetByID(ctx, *batch.SourceEnvelopeID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.BatchSource{}, fmt.Errorf("%w: source envelope %s not found", domain.ErrNotFound, *batch.SourceEnvelopeID)
		}
		if err != nil {
			return domain.BatchSource{}, err
		}
		return domain.EnvelopeSource(envelope)
	default:
		return domain.BatchSource{}, fmt.Errorf("%w: no template or source envelope specified", domain.ErrValidation)
	}
}

// BuildEnvelope materializes one recipient's envelope from the resolved
// source, merging the recipient identity and custom fields into the signer
// payload and tagging the envelope with the batch id.
func (m *Materializer) BuildEnvelope(
	batch *domain.BulkSendBatch,
	source domain.BatchSource,
	recipient domain.BulkSendRecipient,
) (*domain.Envelope, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	payload := domain.RecipientPayload{
		Name:         recipient.Name,
		Email:        recipient.Email,
		RoleName:     signerRoleName,
		CustomFields: recipient.CustomFields,
	}

	batchID := batch.ID
	envelope := &domain.Envelope{
		ID:          uuid.NewString(),
		AccountID:   batch.AccountID,
		BulkBatchID: &batchID,
		Status:      domain.EnvelopeStatusDraft,
		Recipients:  []domain.RecipientPayload{payload},
	}

	switch source.Kind {
	case domain.SourceKindTemplate:
		if source.Template == nil {
			return nil, fmt.Errorf("%w: template source is not resolved", domain.ErrValidation)
		}
		envelope.SenderUserID = source.Template.OwnerUserID
		envelope.EmailSubject = source.Template.Name
	case domain.SourceKindEnvelope:
		if source.Envelope == nil {
			return nil, fmt.Errorf("%w: envelope source is not resolved", domain.ErrValidation)
		}
		envelope.SenderUserID = source.Envelope.SenderUserID
		envelope.EmailSubject = source.Envelope.EmailSubject
		envelope.EmailMessage = source.Envelope.EmailMessage
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrValidation, source.Kind)
	}

	if err := envelope.Validate(); err != nil {
		return nil, err
	}

	return envelope, nil
}
