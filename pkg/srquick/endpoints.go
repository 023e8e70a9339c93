package srquick

import (
	"context"
	"net/http"
	"net/url"
)

// Health probes the backend.
func (client *Client) Health(ctx context.Context) (HealthResponse, error) {
	return Request[HealthResponse](ctx, client, pathHealth, RequestOptions{Operation: OperationHealth})
}

// DebugIP reports the caller address as the backend sees it.
func (client *Client) DebugIP(ctx context.Context) (DebugIPResponse, error) {
	return Request[DebugIPResponse](ctx, client, pathDebugIP, RequestOptions{Operation: OperationDebugIP})
}

// UserType returns whether the caller is new and which UIDs they bound.
func (client *Client) UserType(ctx context.Context) (UserTypeData, error) {
	return Request[UserTypeData](ctx, client, pathUserType, RequestOptions{Operation: OperationUserType})
}

// BindUID binds uid to the caller. The backend syncs the roster as part of
// binding, so duplicate calls share one request.
func (client *Client) BindUID(ctx context.Context, uid UID) (BindResult, error) {
	return shared(ctx, client, inflightKey(OperationBindUID, uid.String()), func(ctx context.Context) (BindResult, error) {
		return Request[BindResult](ctx, client, pathBind, RequestOptions{
			Method:    http.MethodPost,
			Data:      map[string]string{"uid": uid.String()},
			Operation: OperationBindUID,
		})
	})
}

// RefreshPlayer forces a fresh sync of uid and returns full panels.
func (client *Client) RefreshPlayer(ctx context.Context, uid UID) (RefreshPlayerResponse, error) {
	return shared(ctx, client, inflightKey(OperationRefreshPlayer, uid.String()), func(ctx context.Context) (RefreshPlayerResponse, error) {
		return Request[RefreshPlayerResponse](ctx, client, playerPath(uid), RequestOptions{Operation: OperationRefreshPlayer})
	})
}

// PlayerSummary returns the cached player card and roster.
func (client *Client) PlayerSummary(ctx context.Context, uid UID) (PlayerSummaryResponse, error) {
	return Request[PlayerSummaryResponse](ctx, client, playerPath(uid)+"/summary", RequestOptions{Operation: OperationPlayerSummary})
}

// CharacterDetail returns one character panel.
func (client *Client) CharacterDetail(ctx context.Context, uid UID, characterID CharacterID) (CharacterInfo, error) {
	path := playerPath(uid) + "/characters/" + url.PathEscape(characterID.String())
	return Request[CharacterInfo](ctx, client, path, RequestOptions{Operation: OperationCharacterDetail})
}

func playerPath(uid UID) string {
	return pathPlayerPrefix + url.PathEscape(uid.String())
}
