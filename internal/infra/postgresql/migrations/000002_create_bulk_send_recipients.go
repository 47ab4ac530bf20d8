package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/signhub/envelope-engine/internal/repository"
	"gorm.io/gorm"
)

func createBulkSendRecipients() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_bulk_send_recipients",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.RecipientModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_recipients_list_id ON bulk_send_recipients (list_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientModel{})
		},
	}
}
