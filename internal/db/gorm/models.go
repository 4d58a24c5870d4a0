package gorm

import (
	"time"

	"gorm.io/gorm"
)

// KVEntry is one stored document.
type KVEntry struct {
	Key            string `gorm:"primaryKey;type:text"`
	Value          []byte `gorm:"type:bytea;not null"`
	UpdatedAtEpoch int64  `gorm:"index;not null"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// BeforeSave stamps the update time.
func (e *KVEntry) BeforeSave(tx *gorm.DB) error {
	e.UpdatedAtEpoch = time.Now().UnixMilli()
	return nil
}
