package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/signhub/envelope-engine/internal/repository"
	"gorm.io/gorm"
)

func createEnvelopes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_envelopes",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EnvelopeModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_envelopes_bulk_batch_id ON envelopes (bulk_batch_id) WHERE bulk_batch_id IS NOT NULL`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EnvelopeModel{})
		},
	}
}
