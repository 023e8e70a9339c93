package mockbackend

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
)

const (
	syncStatusSuccess = "success"
	defaultTheme      = "light"
	defaultLanguage   = "zh-CN"
)

var (
	errUnknownUser      = errors.New("unknown user")
	errUnknownUID       = errors.New("unknown uid")
	errUnknownCharacter = errors.New("unknown character")
	errUnknownAccount   = errors.New("unknown game account")
	errAccountExists    = errors.New("game account already bound")
)

type userRecord struct {
	user       srquick.User
	accounts   []srquick.GameAccount
	settings   srquick.UserSettings
	characters []srquick.CharacterRecord
	syncLogs   []srquick.SyncLog
	bindings   []srquick.UserBoundItem
	mainUID    string
}

// state is the in-memory data set behind every handler.
type state struct {
	mu         sync.Mutex
	now        func() time.Time
	catalog    map[string]playerFixture
	users      map[string]*userRecord
	nextUserID int64
	nextLogID  int64
}

func newState(now func() time.Time) *state {
	return &state{
		now:        now,
		catalog:    defaultCatalog(),
		users:      map[string]*userRecord{},
		nextUserID: 1,
		nextLogID:  1,
	}
}

func (data *state) timestamp() string {
	return data.now().UTC().Format(time.RFC3339)
}

func (data *state) player(uid string) (playerFixture, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	fixture, ok := data.catalog[uid]
	if !ok {
		return playerFixture{}, errUnknownUID
	}
	return fixture, nil
}

// login returns the user for openID, creating it on first sight.
func (data *state) login(openID string) (srquick.User, bool) {
	data.mu.Lock()
	defer data.mu.Unlock()
	if record, ok := data.users[openID]; ok {
		return record.user, false
	}
	return data.createLocked(openID).user, true
}

func (data *state) createLocked(openID string) *userRecord {
	now := data.timestamp()
	record := &userRecord{
		user: srquick.User{
			ID:        data.nextUserID,
			OpenID:    openID,
			Nickname:  "开拓者",
			CreatedAt: now,
			UpdatedAt: now,
		},
		settings: srquick.UserSettings{
			AutoSync:      true,
			Notifications: true,
			Theme:         defaultTheme,
			Language:      defaultLanguage,
		},
	}
	data.nextUserID++
	data.users[openID] = record
	return record
}

// recordForLocked returns the existing record or creates one. v1 endpoints do not
// require a prior login.
func (data *state) recordForLocked(openID string) *userRecord {
	if record, ok := data.users[openID]; ok {
		return record
	}
	return data.createLocked(openID)
}

func (data *state) profile(openID string) (srquick.UserProfile, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.UserProfile{}, errUnknownUser
	}
	return srquick.UserProfile{
		User:         record.user,
		GameAccounts: append([]srquick.GameAccount{}, record.accounts...),
	}, nil
}

func (data *state) updateProfile(openID string, update srquick.ProfileUpdate) (srquick.User, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.User{}, errUnknownUser
	}
	if update.Nickname != "" {
		record.user.Nickname = update.Nickname
	}
	if update.AvatarURL != "" {
		record.user.AvatarURL = update.AvatarURL
	}
	record.user.UpdatedAt = data.timestamp()
	return record.user, nil
}

func (data *state) addGameAccount(openID string, request srquick.AddGameAccountRequest) (srquick.GameAccount, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.GameAccount{}, errUnknownUser
	}
	for _, account := range record.accounts {
		if account.UID == request.UID {
			return srquick.GameAccount{}, errAccountExists
		}
	}
	account := srquick.GameAccount{
		UID:        request.UID,
		Nickname:   request.Nickname,
		Level:      request.Level,
		WorldLevel: request.WorldLevel,
		IsPrimary:  request.IsPrimary || len(record.accounts) == 0,
		IsActive:   true,
	}
	if fixture, ok := data.catalog[request.UID]; ok {
		if account.Nickname == "" {
			account.Nickname = fixture.player.Nickname
		}
		if account.Level == 0 {
			account.Level = fixture.player.Level
		}
		if account.WorldLevel == 0 {
			account.WorldLevel = fixture.player.WorldLevel
		}
	}
	if account.IsPrimary {
		for index := range record.accounts {
			record.accounts[index].IsPrimary = false
		}
	}
	record.accounts = append(record.accounts, account)
	return account, nil
}

func (data *state) setPrimary(openID string, uid string) error {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return errUnknownUser
	}
	found := false
	for _, account := range record.accounts {
		if account.UID == uid {
			found = true
		}
	}
	if !found {
		return errUnknownAccount
	}
	for index := range record.accounts {
		record.accounts[index].IsPrimary = record.accounts[index].UID == uid
	}
	return nil
}

func (data *state) settings(openID string) (srquick.UserSettings, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.UserSettings{}, errUnknownUser
	}
	return record.settings, nil
}

func (data *state) updateSettings(openID string, update srquick.SettingsUpdate) (srquick.UserSettings, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.UserSettings{}, errUnknownUser
	}
	if update.AutoSync != nil {
		record.settings.AutoSync = *update.AutoSync
	}
	if update.Notifications != nil {
		record.settings.Notifications = *update.Notifications
	}
	if update.Theme != nil {
		record.settings.Theme = *update.Theme
	}
	if update.Language != nil {
		record.settings.Language = *update.Language
	}
	return record.settings, nil
}

func (data *state) characters(openID string, uid string) ([]srquick.CharacterRecord, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return nil, errUnknownUser
	}
	characters := []srquick.CharacterRecord{}
	for _, character := range record.characters {
		if uid == "" || character.UID == uid {
			characters = append(characters, character)
		}
	}
	return characters, nil
}

// syncCharacters copies the fixture roster of uid into the user's records.
// Existing records are only rewritten when force is set.
func (data *state) syncCharacters(openID string, request srquick.SyncRequest) (srquick.SyncResponse, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.SyncResponse{}, errUnknownUser
	}
	fixture, ok := data.catalog[request.UID]
	if !ok {
		return srquick.SyncResponse{}, errUnknownUID
	}
	now := data.timestamp()
	result := srquick.SyncResponse{SyncTime: now}
	for _, character := range fixture.characters {
		index := -1
		for position, existing := range record.characters {
			if existing.UID == request.UID && existing.CharacterID == character.ID {
				index = position
				break
			}
		}
		fresh := srquick.CharacterRecord{
			UID:         request.UID,
			CharacterID: character.ID,
			Name:        character.Name,
			Level:       character.Level,
			Rank:        character.Rank,
			Rarity:      character.Rarity,
			Icon:        character.Icon,
			UpdatedAt:   now,
		}
		switch {
		case index < 0:
			record.characters = append(record.characters, fresh)
			result.CharactersNew++
		case request.ForceUpdate:
			fresh.IsFavorite = record.characters[index].IsFavorite
			record.characters[index] = fresh
			result.CharactersUpdated++
		}
	}
	record.syncLogs = append(record.syncLogs, srquick.SyncLog{
		ID:                data.nextLogID,
		UID:               request.UID,
		Status:            syncStatusSuccess,
		CharactersNew:     result.CharactersNew,
		CharactersUpdated: result.CharactersUpdated,
		CreatedAt:         now,
	})
	data.nextLogID++
	return result, nil
}

// syncLogs returns the newest logs first.
func (data *state) syncLogs(openID string, limit int) ([]srquick.SyncLog, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return nil, errUnknownUser
	}
	logs := append([]srquick.SyncLog{}, record.syncLogs...)
	sort.SliceStable(logs, func(left, right int) bool { return logs[left].ID > logs[right].ID })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (data *state) setFavorite(openID string, uid string, characterID string, isFavorite bool) error {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return errUnknownUser
	}
	for index := range record.characters {
		if record.characters[index].UID == uid && record.characters[index].CharacterID == characterID {
			record.characters[index].IsFavorite = isFavorite
			return nil
		}
	}
	return errUnknownCharacter
}

func (data *state) deleteCharacter(openID string, uid string, characterID string) error {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return errUnknownUser
	}
	for index, character := range record.characters {
		if character.UID == uid && character.CharacterID == characterID {
			record.characters = append(record.characters[:index], record.characters[index+1:]...)
			return nil
		}
	}
	return errUnknownCharacter
}

func (data *state) stats(openID string) (srquick.UserStats, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return srquick.UserStats{}, errUnknownUser
	}
	stats := srquick.UserStats{
		CharactersCount: len(record.characters),
		AccountsCount:   len(record.accounts),
	}
	for _, character := range record.characters {
		if character.IsFavorite {
			stats.FavoriteCount++
		}
	}
	if count := len(record.syncLogs); count > 0 {
		stats.LastSyncTime = record.syncLogs[count-1].CreatedAt
	}
	return stats, nil
}

func (data *state) userType(openID string) srquick.UserTypeData {
	data.mu.Lock()
	defer data.mu.Unlock()
	record := data.recordForLocked(openID)
	return srquick.UserTypeData{
		IsNew:    len(record.bindings) == 0,
		HasBound: len(record.bindings) > 0,
		MainUID:  record.mainUID,
		UIDs:     append([]srquick.UserBoundItem{}, record.bindings...),
	}
}

func (data *state) bind(openID string, uid string) (srquick.BindResult, error) {
	data.mu.Lock()
	defer data.mu.Unlock()
	fixture, ok := data.catalog[uid]
	if !ok {
		return srquick.BindResult{}, errUnknownUID
	}
	record := data.recordForLocked(openID)
	for _, binding := range record.bindings {
		if binding.UID == uid {
			return srquick.BindResult{AlreadyBound: true, UID: uid}, nil
		}
	}
	record.bindings = append(record.bindings, srquick.UserBoundItem{UID: uid, Nickname: fixture.player.Nickname})
	result := srquick.BindResult{CreatedBinding: true, UID: uid}
	if record.mainUID == "" {
		record.mainUID = uid
		result.MainUIDSet = true
	}
	return result, nil
}

// markRefreshed stamps last_sync_at on the caller's binding of uid.
func (data *state) markRefreshed(openID string, uid string) {
	data.mu.Lock()
	defer data.mu.Unlock()
	record, ok := data.users[openID]
	if !ok {
		return
	}
	now := data.timestamp()
	for index := range record.bindings {
		if record.bindings[index].UID == uid {
			record.bindings[index].LastSyncAt = &now
		}
	}
}
