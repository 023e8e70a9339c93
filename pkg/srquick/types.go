package srquick

import (
	"fmt"
	"regexp"
	"strings"
)

var uidPattern = regexp.MustCompile(`^[0-9]{9}$`)

// UID is a 9-digit game account identifier.
type UID struct {
	value string
}

// NewUID validates and normalizes a game UID.
func NewUID(raw string) (UID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UID{}, fmt.Errorf("%w: empty value", ErrInvalidUID)
	}
	if !uidPattern.MatchString(trimmed) {
		return UID{}, fmt.Errorf("%w: %q is not 9 digits", ErrInvalidUID, trimmed)
	}
	return UID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (uid UID) String() string {
	return uid.value
}

// IsZero reports whether uid was never set.
func (uid UID) IsZero() bool {
	return uid.value == ""
}

// CharacterID identifies a character within a roster.
type CharacterID struct {
	value string
}

// NewCharacterID validates and normalizes a character id.
func NewCharacterID(raw string) (CharacterID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CharacterID{}, fmt.Errorf("%w: empty value", ErrInvalidCharacterID)
	}
	return CharacterID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CharacterID) String() string {
	return id.value
}

// User is the authenticated account owner.
type User struct {
	ID        int64  `json:"id"`
	OpenID    string `json:"openid"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// GameAccount is one game UID bound to a user.
type GameAccount struct {
	UID        string `json:"uid"`
	Nickname   string `json:"nickname,omitempty"`
	Level      int    `json:"level,omitempty"`
	WorldLevel int    `json:"world_level,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
	IsActive   bool   `json:"is_active"`
}

// UserProfile is the user with all bound accounts.
type UserProfile struct {
	User         User          `json:"user"`
	GameAccounts []GameAccount `json:"gameAccounts"`
}

// LoginResponse is returned by Login.
type LoginResponse struct {
	User      User `json:"user"`
	IsNewUser bool `json:"isNewUser"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AddGameAccountRequest binds another account to the user.
type AddGameAccountRequest struct {
	UID        string `json:"uid"`
	Nickname   string `json:"nickname,omitempty"`
	Level      int    `json:"level,omitempty"`
	WorldLevel int    `json:"world_level,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

// UserSettings are per-user preferences.
type UserSettings struct {
	AutoSync      bool   `json:"auto_sync"`
	Notifications bool   `json:"notifications"`
	Theme         string `json:"theme,omitempty"`
	Language      string `json:"language,omitempty"`
}

// SettingsUpdate is a partial settings change; nil fields are left unchanged.
type SettingsUpdate struct {
	AutoSync      *bool   `json:"auto_sync,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
	Theme         *string `json:"theme,omitempty"`
	Language      *string `json:"language,omitempty"`
}

// CharacterRecord is a stored character of one game account.
type CharacterRecord struct {
	UID         string `json:"uid"`
	CharacterID string `json:"character_id"`
	Name        string `json:"name,omitempty"`
	Level       int    `json:"level,omitempty"`
	Rank        int    `json:"rank,omitempty"`
	Rarity      int    `json:"rarity,omitempty"`
	Icon        string `json:"icon,omitempty"`
	IsFavorite  bool   `json:"is_favorite"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// SyncRequest asks the backend to refresh a roster.
type SyncRequest struct {
	UID         string `json:"uid"`
	ForceUpdate bool   `json:"force_update"`
}

// SyncResponse reports what a sync changed.
type SyncResponse struct {
	SyncTime          string `json:"sync_time"`
	CharactersNew     int    `json:"characters_new"`
	CharactersUpdated int    `json:"characters_updated"`
}

// SyncLog is one past sync run.
type SyncLog struct {
	ID                int64  `json:"id"`
	UID               string `json:"uid"`
	Status            string `json:"status"`
	CharactersNew     int    `json:"characters_new"`
	CharactersUpdated int    `json:"characters_updated"`
	ErrorMessage      string `json:"error_message,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// UserStats summarizes a user's stored data.
type UserStats struct {
	CharactersCount int    `json:"characters_count"`
	FavoriteCount   int    `json:"favorite_count"`
	AccountsCount   int    `json:"accounts_count"`
	LastSyncTime    string `json:"last_sync_time,omitempty"`
}

// UserBoundItem is a UID bound through the v1 namespace.
type UserBoundItem struct {
	UID        string  `json:"uid"`
	Nickname   string  `json:"nickname"`
	LastSyncAt *string `json:"last_sync_at"`
}

// UserTypeData describes whether the caller is new and what they bound.
type UserTypeData struct {
	IsNew    bool            `json:"is_new"`
	HasBound bool            `json:"has_bound"`
	MainUID  string          `json:"main_uid"`
	UIDs     []UserBoundItem `json:"uids"`
}

// BindResult is returned by BindUID.
type BindResult struct {
	CreatedBinding bool   `json:"createdBinding"`
	AlreadyBound   bool   `json:"alreadyBound"`
	MainUIDSet     bool   `json:"mainUidSet"`
	UID            string `json:"uid"`
}

// NamedIcon is an id/name/icon triple used across game data.
type NamedIcon struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// MemoryData is the player's memory-of-chaos progress.
type MemoryData struct {
	Level          int  `json:"level"`
	ChaosID        *int `json:"chaos_id"`
	ChaosLevel     int  `json:"chaos_level"`
	ChaosStarCount int  `json:"chaos_star_count"`
}

// SpaceInfo holds the player's collection counters.
type SpaceInfo struct {
	MemoryData       MemoryData `json:"memory_data"`
	UniverseLevel    int        `json:"universe_level"`
	AvatarCount      int        `json:"avatar_count"`
	LightConeCount   int        `json:"light_cone_count"`
	RelicCount       int        `json:"relic_count"`
	AchievementCount int        `json:"achievement_count"`
	BookCount        int        `json:"book_count"`
	MusicCount       int        `json:"music_count"`
}

// PlayerInfo is the public player card.
type PlayerInfo struct {
	UID         string    `json:"uid"`
	Nickname    string    `json:"nickname"`
	Level       int       `json:"level"`
	WorldLevel  int       `json:"world_level"`
	FriendCount int       `json:"friend_count"`
	Avatar      NamedIcon `json:"avatar"`
	Signature   string    `json:"signature"`
	IsDisplay   bool      `json:"is_display"`
	SpaceInfo   SpaceInfo `json:"space_info"`
}

// CharacterSummary is one entry of the summary roster.
type CharacterSummary struct {
	ID        string `json:"id"`
	Icon      string `json:"icon"`
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	Level     int    `json:"level"`
	Rarity    int    `json:"rarity"`
	Preview   string `json:"preview"`
	Portrait  string `json:"portrait"`
	Promotion int    `json:"promotion"`
}

// CharacterAttribute is one stat line of a character panel.
type CharacterAttribute struct {
	Field   string  `json:"field"`
	Name    string  `json:"name"`
	Icon    string  `json:"icon"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Percent bool    `json:"percent"`
}

// LightCone is the equipped light cone.
type LightCone struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rarity    int    `json:"rarity"`
	Rank      int    `json:"rank"`
	Level     int    `json:"level"`
	Promotion int    `json:"promotion"`
	Icon      string `json:"icon"`
	Preview   string `json:"preview"`
	Portrait  string `json:"portrait"`
}

// Relic is one equipped relic piece.
type Relic struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	SetID     string               `json:"set_id"`
	SetName   string               `json:"set_name"`
	Rarity    int                  `json:"rarity"`
	Level     int                  `json:"level"`
	Icon      string               `json:"icon"`
	MainAffix CharacterAttribute   `json:"main_affix"`
	SubAffix  []CharacterAttribute `json:"sub_affix"`
}

// CharacterInfo is a full character detail panel.
type CharacterInfo struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Rarity     int                  `json:"rarity"`
	Rank       int                  `json:"rank"`
	Level      int                  `json:"level"`
	Promotion  int                  `json:"promotion"`
	Icon       string               `json:"icon"`
	Preview    string               `json:"preview"`
	Portrait   string               `json:"portrait"`
	Path       NamedIcon            `json:"path"`
	Element    NamedIcon            `json:"element"`
	LightCone  *LightCone           `json:"light_cone"`
	Relics     []Relic              `json:"relics"`
	Attributes []CharacterAttribute `json:"attributes"`
	Additions  []CharacterAttribute `json:"additions"`
	Properties []CharacterAttribute `json:"properties"`
}

// PlayerSummaryResponse is the cached summary of a player.
type PlayerSummaryResponse struct {
	Player     PlayerInfo         `json:"player"`
	Characters []CharacterSummary `json:"characters"`
}

// RefreshPlayerResponse is the freshly synced player with full panels.
type RefreshPlayerResponse struct {
	Player     PlayerInfo      `json:"player"`
	Characters []CharacterInfo `json:"characters"`
}

// HealthResponse is returned by the health probe.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// DebugIPResponse echoes what the backend sees of the caller.
type DebugIPResponse struct {
	IP            string   `json:"ip"`
	IPs           []string `json:"ips"`
	RemoteAddress string   `json:"remoteAddress"`
	TrustProxy    int      `json:"trustProxy"`
}
