package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/signhub/envelope-engine/internal/repository"
	"gorm.io/gorm"
)

func createRecipientResults() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_create_recipient_results",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.RecipientResultModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientResultModel{})
		},
	}
}
