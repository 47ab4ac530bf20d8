package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/signhub/envelope-engine/internal/repository"
	"gorm.io/gorm"
)

func createBulkSendBatches() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_bulk_send_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_batches_status_created ON bulk_send_batches (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_scheduled ON bulk_send_batches (scheduled_at) WHERE scheduled_at IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}
