package migrations

import (
	"github.com/campaignkit/drip-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_contacts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ContactModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_contacts_folder ON contacts (folder_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ContactModel{})
			},
		},
		{
			ID: "000002_create_campaigns",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CampaignModel{}, &repository.CampaignStepModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_campaign_steps_position ON campaign_steps (campaign_id, position)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable(&repository.CampaignStepModel{}); err != nil {
					return err
				}
				return tx.Migrator().DropTable(&repository.CampaignModel{})
			},
		},
		{
			ID: "000003_create_enrollments",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.EnrollmentModel{}); err != nil {
					return err
				}
				indexes := []string{
					// One live enrollment per (contact, campaign); the watcher's
					// ON CONFLICT DO NOTHING upsert relies on this.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_live ON enrollments (contact_id, campaign_id) WHERE status IN ('active', 'paused')`,
					`CREATE INDEX IF NOT EXISTS idx_enrollments_due ON enrollments (next_due_at) WHERE status = 'active' AND next_due_at IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_enrollments_campaign ON enrollments (campaign_id, status)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.EnrollmentModel{})
			},
		},
		{
			ID: "000004_create_folder_watches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.FolderWatchModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_folder_watches_pair ON folder_watches (folder_id, campaign_id) WHERE active = true`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.FolderWatchModel{})
			},
		},
		{
			ID: "000005_create_dispatch_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DispatchLogModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_dispatch_logs_step ON dispatch_logs (enrollment_id, step)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_dispatch_logs_idempotency_key ON dispatch_logs (idempotency_key)`,
					`CREATE INDEX IF NOT EXISTS idx_dispatch_logs_provider_msg ON dispatch_logs (provider_message_id) WHERE provider_message_id IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DispatchLogModel{})
			},
		},
	})

	return m.Migrate()
}
