package pgstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errorOperationStore = "store"
	errorSubjectEntry   = "entry"
	errorSubjectSchema  = "schema"
	errorCodeGet        = "get"
	errorCodeSet        = "set"
	errorCodeRemove     = "remove"
	errorCodeMigrate    = "migrate"

	sqlCreateTable = `
		create table if not exists storage_entries (
			storage_key text primary key,
			value jsonb not null,
			updated_at timestamptz not null default now()
		)
	`

	sqlSelectEntry = `
		select value::text from storage_entries where storage_key = $1
	`

	sqlUpsertEntry = `
		insert into storage_entries(storage_key, value, updated_at)
		values ($1, $2::jsonb, now())
		on conflict (storage_key) do update set value = excluded.value, updated_at = excluded.updated_at
	`

	sqlDeleteEntry = `
		delete from storage_entries where storage_key = $1
	`
)

// Store implements session.Storage using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the storage table when missing.
func (store *Store) Migrate(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, sqlCreateTable); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := store.pool.QueryRow(ctx, sqlSelectEntry, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return []byte(value), true, nil
}

func (store *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := store.pool.Exec(ctx, sqlUpsertEntry, key, string(value)); err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeSet, err)
	}
	return nil
}

func (store *Store) Remove(ctx context.Context, key string) error {
	if _, err := store.pool.Exec(ctx, sqlDeleteEntry, key); err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeRemove, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return srquick.WrapError(errorOperationStore, subject, code, err)
}
