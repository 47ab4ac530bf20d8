package repository

import (
	"context"
	"errors"
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
	"gorm.io/gorm"
)

type ListBatchesParams struct {
	AccountID *string
	Status    *domain.BatchStatus
	Page      int
	PageSize  int
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.BulkSendBatch) error
	GetByID(ctx context.Context, id string) (*domain.BulkSendBatch, error)
	List(ctx context.Context, params ListBatchesParams) ([]domain.BulkSendBatch, int64, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	IncrementSentCount(ctx context.Context, id string) error
	IncrementFailedCount(ctx context.Context, id string) error
	UpdateCounts(ctx context.Context, id string, sent int, failed int) error
	IncrementAttemptCount(ctx context.Context, id string) (int, error)
	GetDueForSchedule(ctx context.Context, limit int) ([]domain.BulkSendBatch, error)
	ClearScheduledAt(ctx context.Context, id string) error
	GetStalled(ctx context.Context, olderThan time.Time, limit int) ([]domain.BulkSendBatch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.BulkSendBatch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.BulkSendBatch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) List(ctx context.Context, params ListBatchesParams) ([]domain.BulkSendBatch, int64, error) {
	query := r.db.WithContext(ctx).Model(&BatchModel{})

	if params.AccountID != nil {
		query = query.Where("account_id = ?", *params.AccountID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []BatchModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	batches := make([]domain.BulkSendBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, total, nil
}

// MarkProcessing transitions a batch to PROCESSING. Re-entering from
// PROCESSING is a valid no-op so retried attempts can pass through, and a
// batch failed by a systemic error on a prior attempt may start a new run.
// Only SENT is strictly terminal.
func (r *GormBatchRepo) MarkProcessing(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status <> ?", id, domain.BatchStatusSent).
		Update("status", domain.BatchStatusProcessing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBatchRepo) MarkSent(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusProcessing).
		Update("status", domain.BatchStatusSent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// MarkFailed is valid from any non-terminal state and records the reason.
func (r *GormBatchRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status NOT IN ?", id, []domain.BatchStatus{domain.BatchStatusSent, domain.BatchStatusFailed}).
		Updates(map[string]any{
			"status":         domain.BatchStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBatchRepo) IncrementSentCount(ctx context.Context, id string) error {
	return r.incrementCounter(ctx, id, "sent_count")
}

func (r *GormBatchRepo) IncrementFailedCount(ctx context.Context, id string) error {
	return r.incrementCounter(ctx, id, "failed_count")
}

// incrementCounter is a single-statement atomic increment so concurrent
// recipient workers cannot lose updates.
func (r *GormBatchRepo) incrementCounter(ctx context.Context, id string, column string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCounts overwrites both outcome counters. Finalization derives the
// totals from the recipient result markers, which are exact across retried
// attempts where the incremental counters can drift.
func (r *GormBatchRepo) UpdateCounts(ctx context.Context, id string, sent int, failed int) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent_count":   sent,
			"failed_count": failed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) IncrementAttemptCount(ctx context.Context, id string) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("attempt_count", gorm.Expr("attempt_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}

	var model BatchModel
	if err := r.db.WithContext(ctx).Select("attempt_count").First(&model, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return model.AttemptCount, nil
}

func (r *GormBatchRepo) GetDueForSchedule(ctx context.Context, limit int) ([]domain.BulkSendBatch, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", domain.BatchStatusPending, time.Now()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.BulkSendBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, nil
}

// ClearScheduledAt removes the schedule marker after a due batch has been
// enqueued, so the schedule scanner does not enqueue it again.
func (r *GormBatchRepo) ClearScheduledAt(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("scheduled_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetStalled returns batches stuck in PROCESSING that have not been touched
// since olderThan, typically because a worker died before its terminal
// transition.
func (r *GormBatchRepo) GetStalled(ctx context.Context, olderThan time.Time, limit int) ([]domain.BulkSendBatch, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.BatchStatusProcessing, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.BulkSendBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, nil
}
