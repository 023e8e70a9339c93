// Package charsync keeps the local character roster in step with the backend.
package charsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
)

var (
	// ErrInvalidStoreConfig reports a missing dependency.
	ErrInvalidStoreConfig = errors.New("invalid sync store config")
	// ErrDataCleared reports a result dropped because ClearSyncData ran while
	// the request was in flight.
	ErrDataCleared = errors.New("sync data cleared while request was in flight")
)

// Backend is the subset of srquick.Client the store calls.
type Backend interface {
	SyncCharacters(ctx context.Context, uid srquick.UID, force bool) (srquick.SyncResponse, error)
	Characters(ctx context.Context, uid srquick.UID) ([]srquick.CharacterRecord, error)
	ToggleCharacterFavorite(ctx context.Context, uid srquick.UID, characterID srquick.CharacterID, isFavorite bool) error
	DeleteCharacter(ctx context.Context, uid srquick.UID, characterID srquick.CharacterID) error
}

// State is a point-in-time copy of the roster.
type State struct {
	Characters   []srquick.CharacterRecord
	IsSyncing    bool
	LastSyncTime string
	SyncError    string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// Store holds the roster. Local state changes only after the backend confirms.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu           sync.Mutex
	characters   []srquick.CharacterRecord
	syncing      int
	lastSyncTime string
	syncError    string
	epoch        uint64
	fetchIssued  uint64
	fetchApplied uint64
}

// New constructs an empty store.
func New(backend Backend, options ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidStoreConfig)
	}
	store := &Store{backend: backend, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store, nil
}

// Snapshot returns a copy of the current state.
func (store *Store) Snapshot() State {
	store.mu.Lock()
	defer store.mu.Unlock()
	return State{
		Characters:   append([]srquick.CharacterRecord{}, store.characters...),
		IsSyncing:    store.syncing > 0,
		LastSyncTime: store.lastSyncTime,
		SyncError:    store.syncError,
	}
}

// SyncCharacters asks the backend to sync uid, then reloads the roster of uid.
func (store *Store) SyncCharacters(ctx context.Context, uid srquick.UID, force bool) (srquick.SyncResponse, error) {
	store.mu.Lock()
	store.syncing++
	store.syncError = ""
	epoch := store.epoch
	store.mu.Unlock()

	result, err := store.backend.SyncCharacters(ctx, uid, force)

	store.mu.Lock()
	if epoch != store.epoch {
		store.mu.Unlock()
		return srquick.SyncResponse{}, ErrDataCleared
	}
	store.syncing--
	if err != nil {
		store.syncError = srquick.UserMessage(err)
		store.mu.Unlock()
		return srquick.SyncResponse{}, err
	}
	store.lastSyncTime = result.SyncTime
	store.mu.Unlock()

	store.logger.Info("characters synced",
		zap.String("uid", uid.String()),
		zap.Int("new", result.CharactersNew),
		zap.Int("updated", result.CharactersUpdated),
	)
	if err := store.GetCharacters(ctx, uid); err != nil {
		return srquick.SyncResponse{}, err
	}
	return result, nil
}

// GetCharacters replaces the roster with the backend list. When fetches
// overlap, the most recently issued one wins.
func (store *Store) GetCharacters(ctx context.Context, uid srquick.UID) error {
	store.mu.Lock()
	store.fetchIssued++
	sequence := store.fetchIssued
	epoch := store.epoch
	store.mu.Unlock()

	characters, err := store.backend.Characters(ctx, uid)

	store.mu.Lock()
	defer store.mu.Unlock()
	if epoch != store.epoch {
		return ErrDataCleared
	}
	if sequence < store.fetchApplied {
		store.logger.Debug("dropping superseded character list", zap.Uint64("sequence", sequence), zap.Error(err))
		return nil
	}
	if err != nil {
		store.syncError = srquick.UserMessage(err)
		return err
	}
	store.fetchApplied = sequence
	store.characters = append([]srquick.CharacterRecord{}, characters...)
	return nil
}

// ToggleCharacterFavorite sets the favorite flag remotely, then locally.
func (store *Store) ToggleCharacterFavorite(ctx context.Context, uid srquick.UID, characterID srquick.CharacterID, isFavorite bool) error {
	if err := store.backend.ToggleCharacterFavorite(ctx, uid, characterID, isFavorite); err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for index := range store.characters {
		if matches(store.characters[index], uid, characterID) {
			store.characters[index].IsFavorite = isFavorite
		}
	}
	return nil
}

// DeleteCharacter removes a character remotely, then locally.
func (store *Store) DeleteCharacter(ctx context.Context, uid srquick.UID, characterID srquick.CharacterID) error {
	if err := store.backend.DeleteCharacter(ctx, uid, characterID); err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	kept := store.characters[:0]
	for _, character := range store.characters {
		if !matches(character, uid, characterID) {
			kept = append(kept, character)
		}
	}
	store.characters = kept
	return nil
}

// ClearSyncData empties the store and drops results still in flight.
func (store *Store) ClearSyncData() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.epoch++
	store.characters = nil
	store.syncing = 0
	store.lastSyncTime = ""
	store.syncError = ""
	store.fetchApplied = store.fetchIssued
}

func matches(character srquick.CharacterRecord, uid srquick.UID, characterID srquick.CharacterID) bool {
	return character.UID == uid.String() && character.CharacterID == characterID.String()
}
