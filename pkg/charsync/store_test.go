package charsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
)

const (
	testUID      = "123456789"
	testOtherUID = "987654321"
)

type fakeBackend struct {
	mu            sync.Mutex
	syncResult    srquick.SyncResponse
	syncErr       error
	characters    map[string][]srquick.CharacterRecord
	charactersErr error
	favoriteErr   error
	deleteErr     error
	syncRequests  []srquick.SyncRequest
	listRequests  []string
	syncGate      chan struct{}
	syncEntered   chan struct{}
	listFailures  map[string]error
	listGates     map[string]chan struct{}
	listEntered   chan struct{}
}

func (backend *fakeBackend) SyncCharacters(_ context.Context, uid srquick.UID, force bool) (srquick.SyncResponse, error) {
	backend.mu.Lock()
	backend.syncRequests = append(backend.syncRequests, srquick.SyncRequest{UID: uid.String(), ForceUpdate: force})
	backend.mu.Unlock()
	if backend.syncEntered != nil {
		backend.syncEntered <- struct{}{}
	}
	if backend.syncGate != nil {
		<-backend.syncGate
	}
	return backend.syncResult, backend.syncErr
}

func (backend *fakeBackend) Characters(_ context.Context, uid srquick.UID) ([]srquick.CharacterRecord, error) {
	backend.mu.Lock()
	backend.listRequests = append(backend.listRequests, uid.String())
	gate := backend.listGates[uid.String()]
	backend.mu.Unlock()
	if gate != nil {
		if backend.listEntered != nil {
			backend.listEntered <- struct{}{}
		}
		<-gate
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if err, ok := backend.listFailures[uid.String()]; ok {
		return nil, err
	}
	return backend.characters[uid.String()], backend.charactersErr
}

func (backend *fakeBackend) ToggleCharacterFavorite(context.Context, srquick.UID, srquick.CharacterID, bool) error {
	return backend.favoriteErr
}

func (backend *fakeBackend) DeleteCharacter(context.Context, srquick.UID, srquick.CharacterID) error {
	return backend.deleteErr
}

func mustUID(test *testing.T, raw string) srquick.UID {
	test.Helper()
	uid, err := srquick.NewUID(raw)
	if err != nil {
		test.Fatalf("uid init failed: %v", err)
	}
	return uid
}

func mustCharacterID(test *testing.T, raw string) srquick.CharacterID {
	test.Helper()
	id, err := srquick.NewCharacterID(raw)
	if err != nil {
		test.Fatalf("character id init failed: %v", err)
	}
	return id
}

func roster() map[string][]srquick.CharacterRecord {
	return map[string][]srquick.CharacterRecord{
		testUID: {
			{UID: testUID, CharacterID: "1102", Name: "希儿"},
			{UID: testUID, CharacterID: "1205", Name: "刃"},
		},
		testOtherUID: {
			{UID: testOtherUID, CharacterID: "1102", Name: "希儿"},
		},
	}
}

func newTestStore(test *testing.T, backend Backend) *Store {
	test.Helper()
	store, err := New(backend)
	if err != nil {
		test.Fatalf("store init failed: %v", err)
	}
	return store
}

func TestSyncCharactersRefetchesRoster(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{
		syncResult: srquick.SyncResponse{SyncTime: "2024-05-01T10:00:00Z", CharactersNew: 2, CharactersUpdated: 1},
		characters: roster(),
	}
	store := newTestStore(test, backend)
	result, err := store.SyncCharacters(context.Background(), mustUID(test, testUID), true)
	if err != nil {
		test.Fatalf("sync failed: %v", err)
	}
	if result.CharactersNew != 2 || result.CharactersUpdated != 1 {
		test.Fatalf("unexpected result %+v", result)
	}
	if len(backend.syncRequests) != 1 || backend.syncRequests[0] != (srquick.SyncRequest{UID: testUID, ForceUpdate: true}) {
		test.Fatalf("unexpected sync requests %+v", backend.syncRequests)
	}
	if len(backend.listRequests) != 1 || backend.listRequests[0] != testUID {
		test.Fatalf("expected roster refetch for uid, got %+v", backend.listRequests)
	}
	state := store.Snapshot()
	if state.IsSyncing || state.LastSyncTime != "2024-05-01T10:00:00Z" || len(state.Characters) != 2 || state.SyncError != "" {
		test.Fatalf("unexpected state %+v", state)
	}
}

func TestSyncCharactersFailureStoresError(test *testing.T) {
	test.Parallel()
	backendErr := &srquick.APIError{Kind: srquick.ErrorKindError, Message: "同步角色数据失败"}
	backend := &fakeBackend{syncErr: backendErr, characters: roster()}
	store := newTestStore(test, backend)
	if _, err := store.SyncCharacters(context.Background(), mustUID(test, testUID), false); !errors.Is(err, backendErr) {
		test.Fatalf("expected backend error, got %v", err)
	}
	state := store.Snapshot()
	if state.IsSyncing || state.SyncError != "同步角色数据失败" || state.LastSyncTime != "" {
		test.Fatalf("unexpected state %+v", state)
	}
	if len(backend.listRequests) != 0 {
		test.Fatalf("expected no refetch after failed sync")
	}
}

func TestSyncCharactersRefetchFailureIsReported(test *testing.T) {
	test.Parallel()
	listErr := &srquick.APIError{Kind: srquick.ErrorKindFail, Message: "获取角色数据失败"}
	backend := &fakeBackend{syncResult: srquick.SyncResponse{SyncTime: "t1"}, charactersErr: listErr}
	store := newTestStore(test, backend)
	if _, err := store.SyncCharacters(context.Background(), mustUID(test, testUID), false); !errors.Is(err, listErr) {
		test.Fatalf("expected list error, got %v", err)
	}
	state := store.Snapshot()
	if state.SyncError != "获取角色数据失败" || state.LastSyncTime != "t1" {
		test.Fatalf("unexpected state %+v", state)
	}
}

func TestIsSyncingWhileInFlight(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{
		syncResult:  srquick.SyncResponse{SyncTime: "t1"},
		characters:  roster(),
		syncGate:    make(chan struct{}),
		syncEntered: make(chan struct{}, 1),
	}
	store := newTestStore(test, backend)
	done := make(chan error, 1)
	go func() {
		_, err := store.SyncCharacters(context.Background(), mustUID(test, testUID), false)
		done <- err
	}()
	<-backend.syncEntered
	if !store.Snapshot().IsSyncing {
		test.Fatalf("expected syncing while request in flight")
	}
	close(backend.syncGate)
	if err := <-done; err != nil {
		test.Fatalf("sync failed: %v", err)
	}
	if store.Snapshot().IsSyncing {
		test.Fatalf("expected syncing cleared")
	}
}

func TestGetCharactersReplacesList(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{characters: roster()}
	store := newTestStore(test, backend)
	if err := store.GetCharacters(context.Background(), mustUID(test, testUID)); err != nil {
		test.Fatalf("get failed: %v", err)
	}
	if err := store.GetCharacters(context.Background(), mustUID(test, testOtherUID)); err != nil {
		test.Fatalf("get failed: %v", err)
	}
	state := store.Snapshot()
	if len(state.Characters) != 1 || state.Characters[0].UID != testOtherUID {
		test.Fatalf("expected last fetch to win, got %+v", state.Characters)
	}
}

func TestSupersededFailedFetchIsIgnored(test *testing.T) {
	test.Parallel()
	gate := make(chan struct{})
	backend := &fakeBackend{
		characters:   roster(),
		listFailures: map[string]error{testOtherUID: &srquick.APIError{Kind: srquick.ErrorKindFail, Message: "获取角色数据失败"}},
		listGates:    map[string]chan struct{}{testOtherUID: gate},
		listEntered:  make(chan struct{}, 1),
	}
	store := newTestStore(test, backend)
	stale := make(chan error, 1)
	go func() {
		stale <- store.GetCharacters(context.Background(), mustUID(test, testOtherUID))
	}()
	<-backend.listEntered
	if err := store.GetCharacters(context.Background(), mustUID(test, testUID)); err != nil {
		test.Fatalf("get failed: %v", err)
	}
	close(gate)
	if err := <-stale; err != nil {
		test.Fatalf("expected superseded failure to be dropped, got %v", err)
	}
	state := store.Snapshot()
	if state.SyncError != "" || len(state.Characters) != 2 || state.Characters[0].UID != testUID {
		test.Fatalf("expected newer list to stand, got %+v", state)
	}
}

func TestToggleFavoriteMatchesUIDAndCharacter(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{characters: map[string][]srquick.CharacterRecord{
		"": append(roster()[testUID], roster()[testOtherUID]...),
	}}
	store := newTestStore(test, backend)
	if err := store.GetCharacters(context.Background(), srquick.UID{}); err != nil {
		test.Fatalf("get failed: %v", err)
	}
	if err := store.ToggleCharacterFavorite(context.Background(), mustUID(test, testUID), mustCharacterID(test, "1102"), true); err != nil {
		test.Fatalf("toggle failed: %v", err)
	}
	for _, character := range store.Snapshot().Characters {
		expected := character.UID == testUID && character.CharacterID == "1102"
		if character.IsFavorite != expected {
			test.Fatalf("unexpected favorite flag on %+v", character)
		}
	}
}

func TestToggleFavoriteFailureLeavesList(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{characters: roster(), favoriteErr: errors.New("boom")}
	store := newTestStore(test, backend)
	_ = store.GetCharacters(context.Background(), mustUID(test, testUID))
	if err := store.ToggleCharacterFavorite(context.Background(), mustUID(test, testUID), mustCharacterID(test, "1102"), true); err == nil {
		test.Fatalf("expected error")
	}
	for _, character := range store.Snapshot().Characters {
		if character.IsFavorite {
			test.Fatalf("expected no local change before backend confirmation")
		}
	}
}

func TestDeleteCharacterRemovesOnlyMatch(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{characters: map[string][]srquick.CharacterRecord{
		"": append(roster()[testUID], roster()[testOtherUID]...),
	}}
	store := newTestStore(test, backend)
	_ = store.GetCharacters(context.Background(), srquick.UID{})
	if err := store.DeleteCharacter(context.Background(), mustUID(test, testUID), mustCharacterID(test, "1102")); err != nil {
		test.Fatalf("delete failed: %v", err)
	}
	characters := store.Snapshot().Characters
	if len(characters) != 2 {
		test.Fatalf("expected two remaining, got %+v", characters)
	}
	for _, character := range characters {
		if character.UID == testUID && character.CharacterID == "1102" {
			test.Fatalf("expected character removed")
		}
	}

	backend.deleteErr = errors.New("boom")
	if err := store.DeleteCharacter(context.Background(), mustUID(test, testUID), mustCharacterID(test, "1205")); err == nil {
		test.Fatalf("expected error")
	}
	if len(store.Snapshot().Characters) != 2 {
		test.Fatalf("expected list unchanged after failure")
	}
}

func TestClearSyncDataDropsInflightSync(test *testing.T) {
	test.Parallel()
	backend := &fakeBackend{
		syncResult:  srquick.SyncResponse{SyncTime: "t1"},
		characters:  roster(),
		syncGate:    make(chan struct{}),
		syncEntered: make(chan struct{}, 1),
	}
	store := newTestStore(test, backend)
	done := make(chan error, 1)
	go func() {
		_, err := store.SyncCharacters(context.Background(), mustUID(test, testUID), false)
		done <- err
	}()
	<-backend.syncEntered
	store.ClearSyncData()
	close(backend.syncGate)
	if err := <-done; !errors.Is(err, ErrDataCleared) {
		test.Fatalf("expected ErrDataCleared, got %v", err)
	}
	state := store.Snapshot()
	if state.IsSyncing || state.LastSyncTime != "" || len(state.Characters) != 0 {
		test.Fatalf("expected cleared state, got %+v", state)
	}
}

func TestNewRejectsMissingBackend(test *testing.T) {
	test.Parallel()
	if _, err := New(nil); !errors.Is(err, ErrInvalidStoreConfig) {
		test.Fatalf("expected ErrInvalidStoreConfig, got %v", err)
	}
}
