package repository

import (
	"context"

	"github.com/signhub/envelope-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultRepository interface {
	// Upsert records or replaces the completion marker for one recipient of a
	// batch. Markers survive across retried attempts so recipients already
	// sent to are not processed again.
	Upsert(ctx context.Context, r *domain.RecipientResult) error
	GetByBatch(ctx context.Context, batchID string) ([]domain.RecipientResult, error)
}

type GormResultRepo struct {
	db *gorm.DB
}

func NewGormResultRepo(db *gorm.DB) *GormResultRepo {
	return &GormResultRepo{db: db}
}

func (r *GormResultRepo) Upsert(ctx context.Context, result *domain.RecipientResult) error {
	model := resultModelFromDomain(result)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_id"}, {Name: "recipient_email"}},
			DoUpdates: clause.AssignmentColumns([]string{"envelope_id", "status", "error"}),
		}).
		Create(model).Error
}

func (r *GormResultRepo) GetByBatch(ctx context.Context, batchID string) ([]domain.RecipientResult, error) {
	var models []RecipientResultModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	results := make([]domain.RecipientResult, 0, len(models))
	for i := range models {
		results = append(results, *resultModelToDomain(&models[i]))
	}

	return results, nil
}
