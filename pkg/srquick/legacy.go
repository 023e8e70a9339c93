package srquick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MarkoPoloResearchLab/srquick/pkg/envelope"
)

// The /api/auth and /api/user namespaces answer with the legacy
// {success, data, error} envelope.

func legacy(operation string, fallback string) RequestOptions {
	return RequestOptions{
		Protocol:        envelope.ProtocolLegacy,
		Operation:       operation,
		FallbackMessage: fallback,
	}
}

func legacyWrite(operation string, fallback string, method string, data any) RequestOptions {
	options := legacy(operation, fallback)
	options.Method = method
	options.Data = data
	return options
}

// Login signs the caller in using the host identity.
func (client *Client) Login(ctx context.Context) (LoginResponse, error) {
	return Request[LoginResponse](ctx, client, pathAuthLogin, legacy(OperationLogin, fallbackLogin))
}

// Profile returns the user and bound game accounts.
func (client *Client) Profile(ctx context.Context) (UserProfile, error) {
	return Request[UserProfile](ctx, client, pathAuthProfile, legacy(OperationProfile, fallbackProfile))
}

// UpdateProfile changes nickname or avatar.
func (client *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	return Request[User](ctx, client, pathAuthProfile, legacyWrite(OperationUpdateProfile, fallbackUpdateProfile, http.MethodPut, update))
}

// AddGameAccount binds another game account to the user.
func (client *Client) AddGameAccount(ctx context.Context, request AddGameAccountRequest) (GameAccount, error) {
	uid, err := NewUID(request.UID)
	if err != nil {
		return GameAccount{}, err
	}
	request.UID = uid.String()
	// Every field is part of the key so a differing request is never merged.
	encoded, err := json.Marshal(request)
	if err != nil {
		return GameAccount{}, fmt.Errorf("encode game account request: %w", err)
	}
	return shared(ctx, client, inflightKey(OperationAddGameAccount, string(encoded)), func(ctx context.Context) (GameAccount, error) {
		return Request[GameAccount](ctx, client, pathAuthAccount, legacyWrite(OperationAddGameAccount, fallbackAddGameAccount, http.MethodPost, request))
	})
}

// SetPrimaryAccount marks uid as the user's primary account.
func (client *Client) SetPrimaryAccount(ctx context.Context, uid UID) error {
	path := pathAuthAccount + "/" + url.PathEscape(uid.String()) + "/primary"
	_, err := shared(ctx, client, inflightKey(OperationSetPrimary, uid.String()), func(ctx context.Context) (json.RawMessage, error) {
		return Request[json.RawMessage](ctx, client, path, legacyWrite(OperationSetPrimary, fallbackSetPrimary, http.MethodPut, nil))
	})
	return err
}

// Settings returns the user's preferences.
func (client *Client) Settings(ctx context.Context) (UserSettings, error) {
	return Request[UserSettings](ctx, client, pathAuthSettings, legacy(OperationSettings, fallbackSettings))
}

// UpdateSettings applies a partial settings change.
func (client *Client) UpdateSettings(ctx context.Context, update SettingsUpdate) (UserSettings, error) {
	return Request[UserSettings](ctx, client, pathAuthSettings, legacyWrite(OperationUpdateSettings, fallbackUpdateSettings, http.MethodPut, update))
}

// Characters lists stored characters, of every account when uid is zero.
func (client *Client) Characters(ctx context.Context, uid UID) ([]CharacterRecord, error) {
	options := legacy(OperationCharacters, fallbackCharacters)
	if !uid.IsZero() {
		options.Query = url.Values{"uid": {uid.String()}}
	}
	characters, err := Request[[]CharacterRecord](ctx, client, pathUserCharacters, options)
	if err != nil {
		return nil, err
	}
	if characters == nil {
		characters = []CharacterRecord{}
	}
	return characters, nil
}

// SyncCharacters pulls the roster of uid from the game.
func (client *Client) SyncCharacters(ctx context.Context, uid UID, force bool) (SyncResponse, error) {
	key := inflightKey(OperationSyncCharacters, uid.String(), strconv.FormatBool(force))
	return shared(ctx, client, key, func(ctx context.Context) (SyncResponse, error) {
		request := SyncRequest{UID: uid.String(), ForceUpdate: force}
		return Request[SyncResponse](ctx, client, pathUserSync, legacyWrite(OperationSyncCharacters, fallbackSyncCharacters, http.MethodPost, request))
	})
}

// SyncLogs lists recent sync runs. A non-positive limit means 20.
func (client *Client) SyncLogs(ctx context.Context, limit int) ([]SyncLog, error) {
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}
	options := legacy(OperationSyncLogs, fallbackSyncLogs)
	options.Query = url.Values{"limit": {strconv.Itoa(limit)}}
	return Request[[]SyncLog](ctx, client, pathUserSyncLogs, options)
}

// ToggleCharacterFavorite sets the favorite flag of one character.
func (client *Client) ToggleCharacterFavorite(ctx context.Context, uid UID, characterID CharacterID, isFavorite bool) error {
	path := characterPath(uid, characterID) + "/favorite"
	body := map[string]bool{"is_favorite": isFavorite}
	_, err := Request[json.RawMessage](ctx, client, path, legacyWrite(OperationToggleFavorite, fallbackToggleFavorite, http.MethodPut, body))
	return err
}

// DeleteCharacter removes one stored character.
func (client *Client) DeleteCharacter(ctx context.Context, uid UID, characterID CharacterID) error {
	_, err := Request[json.RawMessage](ctx, client, characterPath(uid, characterID), legacyWrite(OperationDeleteCharacter, fallbackDeleteCharacter, http.MethodDelete, nil))
	return err
}

// Stats summarizes the user's stored data.
func (client *Client) Stats(ctx context.Context) (UserStats, error) {
	return Request[UserStats](ctx, client, pathUserStats, legacy(OperationStats, fallbackStats))
}

func characterPath(uid UID, characterID CharacterID) string {
	return pathUserCharacters + "/" + url.PathEscape(uid.String()) + "/" + url.PathEscape(characterID.String())
}
