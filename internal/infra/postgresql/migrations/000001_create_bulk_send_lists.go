package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/signhub/envelope-engine/internal/repository"
	"gorm.io/gorm"
)

func createBulkSendLists() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_bulk_send_lists",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ListModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ListModel{})
		},
	}
}
