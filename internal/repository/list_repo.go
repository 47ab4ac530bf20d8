package repository

import (
	"context"
	"errors"

	"github.com/signhub/envelope-engine/internal/domain"
	"gorm.io/gorm"
)

type ListRepository interface {
	GetByID(ctx context.Context, id string) (*domain.BulkSendList, error)
	// GetWithValidRecipients loads a list together with only those recipients
	// whose email address passes syntactic validation.
	GetWithValidRecipients(ctx context.Context, id string) (*domain.BulkSendList, error)
}

type GormListRepo struct {
	db *gorm.DB
}

func NewGormListRepo(db *gorm.DB) *GormListRepo {
	return &GormListRepo{db: db}
}

func (r *GormListRepo) GetByID(ctx context.Context, id string) (*domain.BulkSendList, error) {
	model, err := r.getListModel(ctx, id)
	if err != nil {
		return nil, err
	}

	recipients, err := r.getRecipients(ctx, id)
	if err != nil {
		return nil, err
	}

	return listModelToDomain(model, recipients), nil
}

func (r *GormListRepo) GetWithValidRecipients(ctx context.Context, id string) (*domain.BulkSendList, error) {
	model, err := r.getListModel(ctx, id)
	if err != nil {
		return nil, err
	}

	recipients, err := r.getRecipients(ctx, id)
	if err != nil {
		return nil, err
	}

	valid := make([]RecipientModel, 0, len(recipients))
	for i := range recipients {
		candidate := recipientModelToDomain(&recipients[i])
		if candidate.HasValidEmail() {
			valid = append(valid, recipients[i])
		}
	}

	return listModelToDomain(model, valid), nil
}

func (r *GormListRepo) getListModel(ctx context.Context, id string) (*ListModel, error) {
	var model ListModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *GormListRepo) getRecipients(ctx context.Context, listID string) ([]RecipientModel, error) {
	var models []RecipientModel
	err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}
