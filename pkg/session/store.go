// Package session holds the signed-in user and their game accounts. Only the
// user and the logged-in flag survive restarts; everything else is fetched
// again by CheckLoginStatus.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
)

var (
	// ErrSessionChanged reports a result dropped because the session was
	// logged out or reset while the request was in flight.
	ErrSessionChanged = errors.New("session changed while request was in flight")
	// ErrUnknownAccount reports a UID that is not among the bound accounts.
	ErrUnknownAccount = errors.New("unknown game account")
	// ErrInvalidStoreConfig reports a missing dependency.
	ErrInvalidStoreConfig = errors.New("invalid session store config")
)

// Backend is the subset of srquick.Client the store calls.
type Backend interface {
	Login(ctx context.Context) (srquick.LoginResponse, error)
	Profile(ctx context.Context) (srquick.UserProfile, error)
	UpdateProfile(ctx context.Context, update srquick.ProfileUpdate) (srquick.User, error)
	AddGameAccount(ctx context.Context, request srquick.AddGameAccountRequest) (srquick.GameAccount, error)
	SetPrimaryAccount(ctx context.Context, uid srquick.UID) error
}

// State is a point-in-time copy of the session.
type State struct {
	User           *srquick.User
	GameAccounts   []srquick.GameAccount
	IsLoggedIn     bool
	IsInitialized  bool
	IsLoading      bool
	Error          string
	CurrentAccount *srquick.GameAccount
}

// LoginResult reports the outcome of Login.
type LoginResult struct {
	OK        bool
	IsNewUser bool
	Err       error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded paths.
func WithLogger(logger *zap.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// Store is the session state container. It is safe for concurrent use; state
// is only mutated after the awaited backend call returns.
type Store struct {
	backend Backend
	storage Storage
	logger  *zap.Logger

	mu            sync.Mutex
	user          *srquick.User
	accounts      []srquick.GameAccount
	currentUID    string
	isLoggedIn    bool
	isInitialized bool
	initializing  bool
	pending       int
	errorMessage  string
	epoch         uint64
	persisted     persistedFields
}

// New constructs a store and hydrates the user from storage. Unreadable
// storage is logged and treated as empty.
func New(ctx context.Context, backend Backend, storage Storage, options ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidStoreConfig)
	}
	if storage == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidStoreConfig)
	}
	store := &Store{
		backend: backend,
		storage: storage,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	store.hydrate(ctx)
	return store, nil
}

func (store *Store) hydrate(ctx context.Context) {
	raw, ok, err := store.storage.Get(ctx, StorageKey)
	if err != nil {
		store.logger.Warn("session storage unreadable", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	fields, err := decodePersisted(raw)
	if err != nil {
		store.logger.Warn("session storage corrupt", zap.Error(err))
		return
	}
	store.user = fields.User
	store.isLoggedIn = fields.IsLoggedIn
	store.persisted = fields
}

// Snapshot returns a deep copy of the current state.
func (store *Store) Snapshot() State {
	store.mu.Lock()
	defer store.mu.Unlock()
	accounts := append([]srquick.GameAccount{}, store.accounts...)
	state := State{
		GameAccounts:  accounts,
		IsLoggedIn:    store.isLoggedIn,
		IsInitialized: store.isInitialized,
		IsLoading:     store.pending > 0,
		Error:         store.errorMessage,
	}
	if store.user != nil {
		user := *store.user
		state.User = &user
	}
	for index := range accounts {
		if accounts[index].UID == store.currentUID {
			current := accounts[index]
			state.CurrentAccount = &current
			break
		}
	}
	return state
}

// CheckLoginStatus refreshes a persisted session from the backend. It runs
// once; later and concurrent calls return immediately. When the refresh fails the cached
// user stays signed in without accounts.
func (store *Store) CheckLoginStatus(ctx context.Context) {
	store.mu.Lock()
	if store.isInitialized || store.initializing {
		store.mu.Unlock()
		return
	}
	store.initializing = true
	var cached *srquick.User
	if store.user != nil {
		user := *store.user
		cached = &user
	}
	epoch := store.beginLocked(false)
	store.mu.Unlock()

	var (
		profile srquick.UserProfile
		err     error
	)
	if cached != nil {
		profile, err = store.backend.Profile(ctx)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.endLocked(epoch) {
		return
	}
	store.initializing = false
	defer func() { store.isInitialized = true }()
	if cached == nil {
		return
	}
	if err != nil {
		store.logger.Warn("profile refresh failed, using cached user", zap.Error(err))
		store.user = cached
		store.setAccountsLocked(nil)
	} else {
		user := profile.User
		store.user = &user
		store.setAccountsLocked(profile.GameAccounts)
	}
	store.isLoggedIn = true
	store.errorMessage = ""
	store.persistLocked(ctx)
}

// Login signs in and loads the profile. It never returns an error; a failure
// is stored in State.Error and reported in the result.
func (store *Store) Login(ctx context.Context) LoginResult {
	store.mu.Lock()
	epoch := store.beginLocked(true)
	store.mu.Unlock()

	login, err := store.backend.Login(ctx)
	var profile srquick.UserProfile
	if err == nil {
		profile, err = store.backend.Profile(ctx)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.endLocked(epoch) {
		return LoginResult{Err: ErrSessionChanged}
	}
	if err != nil {
		store.errorMessage = srquick.UserMessage(err)
		return LoginResult{Err: err}
	}
	user := login.User
	store.user = &user
	store.setAccountsLocked(profile.GameAccounts)
	store.isLoggedIn = true
	store.errorMessage = ""
	store.persistLocked(ctx)
	return LoginResult{OK: true, IsNewUser: login.IsNewUser}
}

// Logout clears persisted keys and resets the session. The store stays
// initialized, so a following CheckLoginStatus does nothing.
func (store *Store) Logout(ctx context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	var removeErrors []error
	for _, key := range append([]string{StorageKey}, legacyKeys...) {
		if err := store.storage.Remove(ctx, key); err != nil {
			removeErrors = append(removeErrors, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	store.resetLocked()
	store.isInitialized = true
	store.persisted = persistedFields{}
	return errors.Join(removeErrors...)
}

// Reset returns the store to its initial, uninitialized state.
func (store *Store) Reset(ctx context.Context) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.resetLocked()
	store.persistLocked(ctx)
}

// UpdateUserInfo changes the user's nickname or avatar.
func (store *Store) UpdateUserInfo(ctx context.Context, update srquick.ProfileUpdate) (srquick.User, error) {
	store.mu.Lock()
	epoch := store.beginLocked(true)
	store.mu.Unlock()

	user, err := store.backend.UpdateProfile(ctx, update)

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.endLocked(epoch) {
		return srquick.User{}, ErrSessionChanged
	}
	if err != nil {
		store.errorMessage = srquick.UserMessage(err)
		return srquick.User{}, err
	}
	stored := user
	store.user = &stored
	store.persistLocked(ctx)
	return user, nil
}

// AddGameAccount binds an account and appends it. The new account becomes
// current when it is primary or no account was current.
func (store *Store) AddGameAccount(ctx context.Context, request srquick.AddGameAccountRequest) (srquick.GameAccount, error) {
	store.mu.Lock()
	epoch := store.beginLocked(true)
	store.mu.Unlock()

	account, err := store.backend.AddGameAccount(ctx, request)

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.endLocked(epoch) {
		return srquick.GameAccount{}, ErrSessionChanged
	}
	if err != nil {
		store.errorMessage = srquick.UserMessage(err)
		return srquick.GameAccount{}, err
	}
	store.accounts = append(store.accounts, account)
	if account.IsPrimary || store.currentUID == "" {
		store.currentUID = account.UID
	}
	return account, nil
}

// SetPrimaryAccount makes uid the only primary account and the current one.
func (store *Store) SetPrimaryAccount(ctx context.Context, uid srquick.UID) error {
	store.mu.Lock()
	epoch := store.epoch
	store.mu.Unlock()

	err := store.backend.SetPrimaryAccount(ctx, uid)

	store.mu.Lock()
	defer store.mu.Unlock()
	if epoch != store.epoch {
		return ErrSessionChanged
	}
	if err != nil {
		store.errorMessage = srquick.UserMessage(err)
		return err
	}
	found := false
	for index := range store.accounts {
		store.accounts[index].IsPrimary = store.accounts[index].UID == uid.String()
		found = found || store.accounts[index].IsPrimary
	}
	if found {
		store.currentUID = uid.String()
	}
	return nil
}

// RefreshGameAccounts reloads the accounts from the profile.
func (store *Store) RefreshGameAccounts(ctx context.Context) error {
	store.mu.Lock()
	epoch := store.epoch
	store.mu.Unlock()

	profile, err := store.backend.Profile(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	if epoch != store.epoch {
		return ErrSessionChanged
	}
	if err != nil {
		store.errorMessage = srquick.UserMessage(err)
		return err
	}
	store.setAccountsLocked(profile.GameAccounts)
	return nil
}

// SetCurrentAccount selects a bound account. A zero UID clears the selection.
func (store *Store) SetCurrentAccount(uid srquick.UID) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if uid.IsZero() {
		store.currentUID = ""
		return nil
	}
	for _, account := range store.accounts {
		if account.UID == uid.String() {
			store.currentUID = account.UID
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownAccount, uid.String())
}

// PrimaryAccount returns the primary active account, else the first account.
func (store *Store) PrimaryAccount() *srquick.GameAccount {
	store.mu.Lock()
	defer store.mu.Unlock()
	primary := primaryAccount(store.accounts)
	if primary == nil {
		return nil
	}
	account := *primary
	return &account
}

// ClearError drops the stored error message.
func (store *Store) ClearError() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.errorMessage = ""
}

func (store *Store) beginLocked(clearError bool) uint64 {
	store.pending++
	if clearError {
		store.errorMessage = ""
	}
	return store.epoch
}

// endLocked finishes an action begun in epoch and reports whether its result
// still applies.
func (store *Store) endLocked(epoch uint64) bool {
	if epoch != store.epoch {
		return false
	}
	if store.pending > 0 {
		store.pending--
	}
	return true
}

func (store *Store) resetLocked() {
	store.epoch++
	store.user = nil
	store.accounts = nil
	store.currentUID = ""
	store.isLoggedIn = false
	store.isInitialized = false
	store.initializing = false
	store.pending = 0
	store.errorMessage = ""
}

func (store *Store) setAccountsLocked(accounts []srquick.GameAccount) {
	store.accounts = append([]srquick.GameAccount{}, accounts...)
	store.currentUID = ""
	if primary := primaryAccount(store.accounts); primary != nil {
		store.currentUID = primary.UID
	}
}

// persistLocked writes the user and logged-in flag when either changed.
// Storage failures are logged; the in-memory state stays authoritative.
func (store *Store) persistLocked(ctx context.Context) {
	fields := persistedFields{IsLoggedIn: store.isLoggedIn}
	if store.user != nil {
		user := *store.user
		fields.User = &user
	}
	if samePersisted(fields, store.persisted) {
		return
	}
	raw, err := encodePersisted(fields)
	if err == nil {
		err = store.storage.Set(ctx, StorageKey, raw)
	}
	if err != nil {
		store.logger.Warn("session persist failed", zap.Error(err))
		return
	}
	store.persisted = fields
}

func samePersisted(left persistedFields, right persistedFields) bool {
	if left.IsLoggedIn != right.IsLoggedIn {
		return false
	}
	if left.User == nil || right.User == nil {
		return left.User == nil && right.User == nil
	}
	return *left.User == *right.User
}

func primaryAccount(accounts []srquick.GameAccount) *srquick.GameAccount {
	for index := range accounts {
		if accounts[index].IsPrimary && accounts[index].IsActive {
			return &accounts[index]
		}
	}
	if len(accounts) > 0 {
		return &accounts[0]
	}
	return nil
}
