package srquick

// User-facing messages.
const (
	MessageRequestRejected    = "请求不合法，请检查输入"
	MessageServerFailure      = "服务器开小差了，请稍后再试"
	MessageNetworkUnreachable = "网络连接失败，请检查网络"
	MessageMalformedResponse  = "服务器返回数据格式错误"
	MessageUnexpectedFormat   = "响应格式不符合预期"
	MessageGeneric            = "发生了一些问题，请稍后再试"
	MessageUnauthorized       = "未登录或环境异常，请在小程序内打开后重试"
	MessageUnknown            = "未知错误"
)

// Fallback messages of the legacy endpoints.
const (
	fallbackLogin           = "登录失败"
	fallbackProfile         = "获取用户信息失败"
	fallbackUpdateProfile   = "更新用户信息失败"
	fallbackAddGameAccount  = "添加游戏账号失败"
	fallbackSetPrimary      = "设置主要账号失败"
	fallbackSettings        = "获取设置失败"
	fallbackUpdateSettings  = "更新设置失败"
	fallbackCharacters      = "获取角色数据失败"
	fallbackSyncCharacters  = "同步角色数据失败"
	fallbackSyncLogs        = "获取同步历史失败"
	fallbackToggleFavorite  = "更新收藏状态失败"
	fallbackDeleteCharacter = "删除角色数据失败"
	fallbackStats           = "获取统计信息失败"
)

// CodeMissingOpenID is returned when the caller carries no host identity.
const CodeMissingOpenID = "MISSING_OPENID"

const (
	OperationHealth          = "health"
	OperationDebugIP         = "debug_ip"
	OperationUserType        = "user_type"
	OperationBindUID         = "bind_uid"
	OperationRefreshPlayer   = "refresh_player"
	OperationPlayerSummary   = "player_summary"
	OperationCharacterDetail = "character_detail"
	OperationLogin           = "login"
	OperationProfile         = "profile"
	OperationUpdateProfile   = "update_profile"
	OperationAddGameAccount  = "add_game_account"
	OperationSetPrimary      = "set_primary_account"
	OperationSettings        = "settings"
	OperationUpdateSettings  = "update_settings"
	OperationCharacters      = "characters"
	OperationSyncCharacters  = "sync_characters"
	OperationSyncLogs        = "sync_logs"
	OperationToggleFavorite  = "toggle_favorite"
	OperationDeleteCharacter = "delete_character"
	OperationStats           = "stats"
	operationRequest         = "request"

	outcomeSuccess          = "success"
	outcomeFail             = "fail"
	outcomeError            = "error"
	outcomeNetwork          = "network"
	outcomeMalformed        = "malformed"
	outcomeUnexpectedFormat = "unexpected_format"

	inflightKeyDelimiter = ":"
	defaultSyncLogLimit  = 20
)

const (
	pathHealth         = "/health"
	pathDebugIP        = "/debug/ip"
	pathUserType       = "/api/v1/user/type"
	pathBind           = "/api/v1/user/bind"
	pathPlayerPrefix   = "/api/v1/player/"
	pathAuthLogin      = "/api/auth/login"
	pathAuthProfile    = "/api/auth/profile"
	pathAuthAccount    = "/api/auth/game-account"
	pathAuthSettings   = "/api/auth/settings"
	pathUserCharacters = "/api/user/characters"
	pathUserSync       = "/api/user/sync"
	pathUserSyncLogs   = "/api/user/sync-logs"
	pathUserStats      = "/api/user/stats"
)
