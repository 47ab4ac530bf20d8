package repository

import (
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
)

// BatchModel is the persistence model for the bulk_send_batches table.
type BatchModel struct {
	ID               string             `gorm:"type:uuid;primaryKey"`
	AccountID        string             `gorm:"type:uuid;not null;index"`
	TemplateID       *string            `gorm:"type:uuid"`
	SourceEnvelopeID *string            `gorm:"type:uuid"`
	ListID           string             `gorm:"type:uuid;not null"`
	SentCount        int                `gorm:"not null;default:0"`
	FailedCount      int                `gorm:"not null;default:0"`
	Status           domain.BatchStatus `gorm:"type:varchar(20);not null"`
	FailureReason    *string            `gorm:"type:text"`
	AttemptCount     int                `gorm:"not null;default:0"`
	MaxAttempts      int                `gorm:"not null;default:3"`
	ScheduledAt      *time.Time         `gorm:"type:timestamptz"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BatchModel) TableName() string {
	return "bulk_send_batches"
}

// ListModel is the persistence model for bulk_send_lists.
type ListModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AccountID string `gorm:"type:uuid;not null;index"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ListModel) TableName() string {
	return "bulk_send_lists"
}

// RecipientModel is the persistence model for bulk_send_recipients.
type RecipientModel struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	ListID       string            `gorm:"type:uuid;not null;index"`
	Name         string            `gorm:"type:varchar(255);not null"`
	Email        string            `gorm:"type:varchar(255);not null"`
	CustomFields map[string]string `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
}

func (RecipientModel) TableName() string {
	return "bulk_send_recipients"
}

// EnvelopeModel is the persistence model for envelopes.
type EnvelopeModel struct {
	ID           string                    `gorm:"type:uuid;primaryKey"`
	AccountID    string                    `gorm:"type:uuid;not null;index"`
	BulkBatchID  *string                   `gorm:"type:uuid;index"`
	SenderUserID string                    `gorm:"type:uuid"`
	EmailSubject string                    `gorm:"type:varchar(255);not null"`
	EmailMessage string                    `gorm:"type:text"`
	Status       domain.EnvelopeStatus     `gorm:"type:varchar(20);not null"`
	Recipients   []domain.RecipientPayload `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (EnvelopeModel) TableName() string {
	return "envelopes"
}

// TemplateModel is the persistence model for templates.
type TemplateModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	AccountID   string `gorm:"type:uuid;not null;index"`
	OwnerUserID string `gorm:"type:uuid;not null"`
	Name        string `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

// RecipientResultModel is the persistence model for bulk_send_recipient_results.
type RecipientResultModel struct {
	BatchID        string              `gorm:"type:uuid;primaryKey"`
	RecipientEmail string              `gorm:"type:varchar(255);primaryKey"`
	EnvelopeID     *string             `gorm:"type:uuid"`
	Status         domain.ResultStatus `gorm:"type:varchar(20);not null"`
	Error          *string             `gorm:"type:text"`
	CreatedAt      time.Time
}

func (RecipientResultModel) TableName() string {
	return "bulk_send_recipient_results"
}

func batchModelFromDomain(b *domain.BulkSendBatch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:               b.ID,
		AccountID:        b.AccountID,
		TemplateID:       b.TemplateID,
		SourceEnvelopeID: b.SourceEnvelopeID,
		ListID:           b.ListID,
		SentCount:        b.SentCount,
		FailedCount:      b.FailedCount,
		Status:           b.Status,
		FailureReason:    b.FailureReason,
		AttemptCount:     b.AttemptCount,
		MaxAttempts:      b.MaxAttempts,
		ScheduledAt:      b.ScheduledAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.BulkSendBatch {
	if m == nil {
		return nil
	}

	return &domain.BulkSendBatch{
		ID:               m.ID,
		AccountID:        m.AccountID,
		TemplateID:       m.TemplateID,
		SourceEnvelopeID: m.SourceEnvelopeID,
		ListID:           m.ListID,
		SentCount:        m.SentCount,
		FailedCount:      m.FailedCount,
		Status:           m.Status,
		FailureReason:    m.FailureReason,
		AttemptCount:     m.AttemptCount,
		MaxAttempts:      m.MaxAttempts,
		ScheduledAt:      m.ScheduledAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func listModelToDomain(m *ListModel, recipients []RecipientModel) *domain.BulkSendList {
	if m == nil {
		return nil
	}

	list := &domain.BulkSendList{
		ID:        m.ID,
		AccountID: m.AccountID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for i := range recipients {
		list.Recipients = append(list.Recipients, *recipientModelToDomain(&recipients[i]))
	}
	return list
}

func recipientModelToDomain(m *RecipientModel) *domain.BulkSendRecipient {
	if m == nil {
		return nil
	}

	return &domain.BulkSendRecipient{
		ID:           m.ID,
		ListID:       m.ListID,
		Name:         m.Name,
		Email:        m.Email,
		CustomFields: m.CustomFields,
		CreatedAt:    m.CreatedAt,
	}
}

func envelopeModelFromDomain(e *domain.Envelope) *EnvelopeModel {
	if e == nil {
		return nil
	}

	return &EnvelopeModel{
		ID:           e.ID,
		AccountID:    e.AccountID,
		BulkBatchID:  e.BulkBatchID,
		SenderUserID: e.SenderUserID,
		EmailSubject: e.EmailSubject,
		EmailMessage: e.EmailMessage,
		Status:       e.Status,
		Recipients:   e.Recipients,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func envelopeModelToDomain(m *EnvelopeModel) *domain.Envelope {
	if m == nil {
		return nil
	}

	return &domain.Envelope{
		ID:           m.ID,
		AccountID:    m.AccountID,
		BulkBatchID:  m.BulkBatchID,
		SenderUserID: m.SenderUserID,
		EmailSubject: m.EmailSubject,
		EmailMessage: m.EmailMessage,
		Status:       m.Status,
		Recipients:   m.Recipients,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:          m.ID,
		AccountID:   m.AccountID,
		OwnerUserID: m.OwnerUserID,
		Name:        m.Name,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func resultModelFromDomain(r *domain.RecipientResult) *RecipientResultModel {
	if r == nil {
		return nil
	}

	return &RecipientResultModel{
		BatchID:        r.BatchID,
		RecipientEmail: r.RecipientEmail,
		EnvelopeID:     r.EnvelopeID,
		Status:         r.Status,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
	}
}

func resultModelToDomain(m *RecipientResultModel) *domain.RecipientResult {
	if m == nil {
		return nil
	}

	return &domain.RecipientResult{
		BatchID:        m.BatchID,
		RecipientEmail: m.RecipientEmail,
		EnvelopeID:     m.EnvelopeID,
		Status:         m.Status,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}
