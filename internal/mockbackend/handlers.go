package mockbackend

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	healthStatusOK      = "ok"
	defaultSyncLogLimit = 20
	forwardedForHeader  = "X-Forwarded-For"
)

type bindRequest struct {
	UID string `json:"uid"`
}

type favoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

func (backend *Backend) handleHealth(ctx *gin.Context) {
	taggedSuccess(ctx, srquick.HealthResponse{
		Status:      healthStatusOK,
		Timestamp:   backend.now().UTC().Format(time.RFC3339),
		Environment: backend.cfg.Environment,
	})
}

func (backend *Backend) handleDebugIP(ctx *gin.Context) {
	ips := []string{}
	for _, part := range strings.Split(ctx.GetHeader(forwardedForHeader), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ips = append(ips, trimmed)
		}
	}
	taggedSuccess(ctx, srquick.DebugIPResponse{
		IP:            ctx.ClientIP(),
		IPs:           ips,
		RemoteAddress: ctx.Request.RemoteAddr,
		TrustProxy:    defaultTrustProxy,
	})
}

func (backend *Backend) handleUserType(ctx *gin.Context) {
	taggedSuccess(ctx, backend.data.userType(openIDOf(ctx)))
}

func (backend *Backend) handleBind(ctx *gin.Context) {
	var request bindRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		taggedFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	uid, err := srquick.NewUID(request.UID)
	if err != nil {
		taggedFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
		return
	}
	result, err := backend.data.bind(openIDOf(ctx), uid.String())
	if err != nil {
		backend.taggedStateError(ctx, err)
		return
	}
	taggedSuccess(ctx, result)
}

func (backend *Backend) handleRefreshPlayer(ctx *gin.Context) {
	fixture, ok := backend.playerParam(ctx)
	if !ok {
		return
	}
	backend.data.markRefreshed(openIDOf(ctx), fixture.player.UID)
	taggedSuccess(ctx, srquick.RefreshPlayerResponse{
		Player:     fixture.player,
		Characters: fixture.characters,
	})
}

func (backend *Backend) handlePlayerSummary(ctx *gin.Context) {
	fixture, ok := backend.playerParam(ctx)
	if !ok {
		return
	}
	summaries := make([]srquick.CharacterSummary, 0, len(fixture.characters))
	for _, character := range fixture.characters {
		summaries = append(summaries, summaryOf(character))
	}
	taggedSuccess(ctx, srquick.PlayerSummaryResponse{Player: fixture.player, Characters: summaries})
}

func (backend *Backend) handleCharacterDetail(ctx *gin.Context) {
	fixture, ok := backend.playerParam(ctx)
	if !ok {
		return
	}
	characterID := ctx.Param("characterId")
	for _, character := range fixture.characters {
		if character.ID == characterID {
			taggedSuccess(ctx, character)
			return
		}
	}
	backend.taggedStateError(ctx, errUnknownCharacter)
}

func (backend *Backend) playerParam(ctx *gin.Context) (playerFixture, bool) {
	uid, err := srquick.NewUID(ctx.Param("uid"))
	if err != nil {
		taggedFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
		return playerFixture{}, false
	}
	fixture, err := backend.data.player(uid.String())
	if err != nil {
		backend.taggedStateError(ctx, err)
		return playerFixture{}, false
	}
	return fixture, true
}

func (backend *Backend) handleLogin(ctx *gin.Context) {
	user, isNew := backend.data.login(openIDOf(ctx))
	if isNew {
		backend.logger.Info("user created", zap.Int64("user_id", user.ID))
	}
	legacySuccess(ctx, srquick.LoginResponse{User: user, IsNewUser: isNew})
}

func (backend *Backend) handleProfile(ctx *gin.Context) {
	profile, err := backend.data.profile(openIDOf(ctx))
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, profile)
}

func (backend *Backend) handleUpdateProfile(ctx *gin.Context) {
	var update srquick.ProfileUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	user, err := backend.data.updateProfile(openIDOf(ctx), update)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, user)
}

func (backend *Backend) handleAddGameAccount(ctx *gin.Context) {
	var request srquick.AddGameAccountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	uid, err := srquick.NewUID(request.UID)
	if err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
		return
	}
	request.UID = uid.String()
	account, err := backend.data.addGameAccount(openIDOf(ctx), request)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, account)
}

func (backend *Backend) handleSetPrimary(ctx *gin.Context) {
	uid, err := srquick.NewUID(ctx.Param("uid"))
	if err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
		return
	}
	if err := backend.data.setPrimary(openIDOf(ctx), uid.String()); err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, nil)
}

func (backend *Backend) handleSettings(ctx *gin.Context) {
	settings, err := backend.data.settings(openIDOf(ctx))
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, settings)
}

func (backend *Backend) handleUpdateSettings(ctx *gin.Context) {
	var update srquick.SettingsUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	settings, err := backend.data.updateSettings(openIDOf(ctx), update)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, settings)
}

func (backend *Backend) handleCharacters(ctx *gin.Context) {
	uid := strings.TrimSpace(ctx.Query("uid"))
	if uid != "" {
		if _, err := srquick.NewUID(uid); err != nil {
			legacyFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
			return
		}
	}
	characters, err := backend.data.characters(openIDOf(ctx), uid)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, characters)
}

func (backend *Backend) handleSync(ctx *gin.Context) {
	var request srquick.SyncRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	uid, err := srquick.NewUID(request.UID)
	if err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidUID, codeInvalidUID)
		return
	}
	request.UID = uid.String()
	result, err := backend.data.syncCharacters(openIDOf(ctx), request)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	backend.logger.Info("characters synced",
		zap.String("uid", request.UID),
		zap.Int("new", result.CharactersNew),
		zap.Int("updated", result.CharactersUpdated),
	)
	legacySuccess(ctx, result)
}

func (backend *Backend) handleSyncLogs(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultSyncLogLimit)))
	if err != nil || limit <= 0 {
		limit = defaultSyncLogLimit
	}
	logs, err := backend.data.syncLogs(openIDOf(ctx), limit)
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, logs)
}

func (backend *Backend) handleFavorite(ctx *gin.Context) {
	var request favoriteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		legacyFail(ctx, http.StatusBadRequest, messageInvalidBody, codeInvalidBody)
		return
	}
	if err := backend.data.setFavorite(openIDOf(ctx), ctx.Param("uid"), ctx.Param("characterId"), request.IsFavorite); err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, nil)
}

func (backend *Backend) handleDeleteCharacter(ctx *gin.Context) {
	if err := backend.data.deleteCharacter(openIDOf(ctx), ctx.Param("uid"), ctx.Param("characterId")); err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, nil)
}

func (backend *Backend) handleStats(ctx *gin.Context) {
	stats, err := backend.data.stats(openIDOf(ctx))
	if err != nil {
		backend.legacyStateError(ctx, err)
		return
	}
	legacySuccess(ctx, stats)
}

func (backend *Backend) taggedStateError(ctx *gin.Context, err error) {
	httpStatus, message, code := backend.classify(err)
	if httpStatus >= http.StatusInternalServerError {
		taggedError(ctx, httpStatus, message, code)
		return
	}
	taggedFail(ctx, httpStatus, message, code)
}

func (backend *Backend) legacyStateError(ctx *gin.Context, err error) {
	httpStatus, message, code := backend.classify(err)
	legacyFail(ctx, httpStatus, message, code)
}

func (backend *Backend) classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, errUnknownUser):
		return http.StatusNotFound, messageUserNotFound, codeNotFound
	case errors.Is(err, errUnknownUID):
		return http.StatusNotFound, messageUIDNotFound, codeUIDNotFound
	case errors.Is(err, errUnknownCharacter):
		return http.StatusNotFound, messageCharacterNotFound, codeNotFound
	case errors.Is(err, errUnknownAccount):
		return http.StatusNotFound, messageAccountNotFound, codeNotFound
	case errors.Is(err, errAccountExists):
		return http.StatusConflict, messageAccountExists, codeAlreadyExists
	default:
		backend.logger.Error("mock backend failure", zap.Error(err))
		return http.StatusInternalServerError, messageInternal, ""
	}
}
