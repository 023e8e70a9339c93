package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorOperationStore = "store"
	errorSubjectEntry   = "entry"
	errorSubjectSchema  = "schema"
	errorCodeGet        = "get"
	errorCodeSet        = "set"
	errorCodeRemove     = "remove"
	errorCodeMigrate    = "migrate"
)

// Store implements session.Storage using GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the storage table when missing.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(&StorageEntry{}); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry StorageEntry
	err := store.db.WithContext(ctx).Where("storage_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return []byte(entry.Value), true, nil
}

func (store *Store) Set(ctx context.Context, key string, value []byte) error {
	entry := StorageEntry{Key: key, Value: datatypes.JSON(value), UpdatedAt: store.now()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeSet, err)
	}
	return nil
}

func (store *Store) Remove(ctx context.Context, key string) error {
	if err := store.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&StorageEntry{}).Error; err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return srquick.WrapError(errorOperationStore, subject, code, err)
}
