package repository

import (
	"context"
	"errors"

	"github.com/signhub/envelope-engine/internal/domain"
	"gorm.io/gorm"
)

type EnvelopeRepository interface {
	Create(ctx context.Context, e *domain.Envelope) error
	GetByID(ctx context.Context, id string) (*domain.Envelope, error)
	UpdateStatus(ctx context.Context, id string, status domain.EnvelopeStatus) error
	CountByBatch(ctx context.Context, batchID string) (int64, error)
}

type GormEnvelopeRepo struct {
	db *gorm.DB
}

func NewGormEnvelopeRepo(db *gorm.DB) *GormEnvelopeRepo {
	return &GormEnvelopeRepo{db: db}
}

func (r *GormEnvelopeRepo) Create(ctx context.Context, e *domain.Envelope) error {
	model := envelopeModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if e != nil {
		*e = *envelopeModelToDomain(model)
	}
	return nil
}

func (r *GormEnvelopeRepo) GetByID(ctx context.Context, id string) (*domain.Envelope, error) {
	var model EnvelopeModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return envelopeModelToDomain(&model), nil
}

func (r *GormEnvelopeRepo) UpdateStatus(ctx context.Context, id string, status domain.EnvelopeStatus) error {
	result := r.db.WithContext(ctx).
		Model(&EnvelopeModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormEnvelopeRepo) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&EnvelopeModel{}).
		Where("bulk_batch_id = ?", batchID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
