package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrations lists schema changes in order. IDs must never be reused.
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_kv_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&KVEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("kv_entries")
			},
		},
		{
			ID: "002_kv_entries_prefix_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_entries_key_prefix ON kv_entries (key text_pattern_ops)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_kv_entries_key_prefix`).Error
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}
