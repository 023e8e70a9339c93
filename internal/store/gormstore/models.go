package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// StorageEntry mirrors the storage_entries table.
type StorageEntry struct {
	Key       string         `gorm:"column:storage_key;primaryKey"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (StorageEntry) TableName() string { return "storage_entries" }
