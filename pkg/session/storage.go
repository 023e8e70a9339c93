package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
)

// StorageKey holds the persisted session.
const StorageKey = "sr-quick-user-storage"

// Keys written by older clients, cleared on logout.
var legacyKeys = []string{"userInfo", "userProfile", "userSettings"}

const persistedVersion = 0

// Storage is an opaque key-value capability supplied by the host.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is a Storage kept in process memory.
type MemoryStorage struct {
	values map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage. It is not safe for
// concurrent use on its own; Store serializes its calls.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string][]byte{}}
}

func (storage *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := storage.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (storage *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	storage.values[key] = append([]byte(nil), value...)
	return nil
}

func (storage *MemoryStorage) Remove(_ context.Context, key string) error {
	delete(storage.values, key)
	return nil
}

type persistedFields struct {
	User       *srquick.User `json:"user"`
	IsLoggedIn bool          `json:"isLoggedIn"`
}

type persistedDocument struct {
	State   persistedFields `json:"state"`
	Version int             `json:"version"`
}

func encodePersisted(fields persistedFields) ([]byte, error) {
	return json.Marshal(persistedDocument{State: fields, Version: persistedVersion})
}

func decodePersisted(raw []byte) (persistedFields, error) {
	var document persistedDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		return persistedFields{}, fmt.Errorf("decode persisted session: %w", err)
	}
	return document.State, nil
}
