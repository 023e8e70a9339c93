// Package presenter turns store results into short user-facing notices.
// Stores never notify; commands pass their outcomes through a Presenter.
package presenter

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/MarkoPoloResearchLab/srquick/pkg/session"
	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
)

const (
	MessageWelcome          = "登录成功"
	MessageWelcomeNew       = "欢迎加入，开拓者"
	MessageLoggedOut        = "已退出登录"
	MessageAccountAdded     = "绑定成功"
	MessagePrimarySet       = "已设为主账号"
	MessageFavoriteOn       = "已收藏"
	MessageFavoriteOff      = "已取消收藏"
	MessageCharacterDeleted = "已删除"
	MessageProfileUpdated   = "已更新"
	MessageNeedAccount      = "请先添加游戏账号"
	MessageInvalidUID       = "UID必须为9位数字"
	messageSyncedFormat     = "同步完成：新增 %d，更新 %d"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
	LevelInfo    Level = "info"
)

// Notifier shows a notice to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// WriterNotifier prints one notice per line.
type WriterNotifier struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterNotifier returns a Notifier writing to writer.
func NewWriterNotifier(writer io.Writer) *WriterNotifier {
	return &WriterNotifier{writer: writer}
}

func (notifier *WriterNotifier) Notify(level Level, message string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	_, _ = fmt.Fprintf(notifier.writer, "%s %s\n", symbolFor(level), message)
}

func symbolFor(level Level) string {
	switch level {
	case LevelSuccess:
		return "✓"
	case LevelFailure:
		return "✗"
	default:
		return "•"
	}
}

// ZapNotifier records notices as log entries.
type ZapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier returns a Notifier logging to logger.
func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapNotifier{logger: logger}
}

func (notifier *ZapNotifier) Notify(level Level, message string) {
	switch level {
	case LevelFailure:
		notifier.logger.Warn("notice", zap.String("level", string(level)), zap.String("message", message))
	default:
		notifier.logger.Info("notice", zap.String("level", string(level)), zap.String("message", message))
	}
}

// Presenter maps outcomes to notices.
type Presenter struct {
	notifier Notifier
}

// New returns a Presenter over notifier. A nil notifier discards notices.
func New(notifier Notifier) *Presenter {
	if notifier == nil {
		notifier = NewZapNotifier(nil)
	}
	return &Presenter{notifier: notifier}
}

// Failure reports err with its user-facing message.
func (presenter *Presenter) Failure(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, srquick.ErrInvalidUID) {
		presenter.notifier.Notify(LevelFailure, MessageInvalidUID)
		return
	}
	presenter.notifier.Notify(LevelFailure, srquick.UserMessage(err))
}

// Info passes a neutral notice through.
func (presenter *Presenter) Info(message string) {
	presenter.notifier.Notify(LevelInfo, message)
}

// Login reports a login attempt.
func (presenter *Presenter) Login(result session.LoginResult) {
	switch {
	case !result.OK:
		presenter.Failure(result.Err)
	case result.IsNewUser:
		presenter.notifier.Notify(LevelSuccess, MessageWelcomeNew)
	default:
		presenter.notifier.Notify(LevelSuccess, MessageWelcome)
	}
}

// Logout reports a logout. Storage cleanup failures are still a logout.
func (presenter *Presenter) Logout(err error) {
	presenter.notifier.Notify(LevelSuccess, MessageLoggedOut)
	if err != nil {
		presenter.notifier.Notify(LevelInfo, err.Error())
	}
}

// Outcome reports a plain success message or the error.
func (presenter *Presenter) Outcome(message string, err error) {
	if err != nil {
		presenter.Failure(err)
		return
	}
	presenter.notifier.Notify(LevelSuccess, message)
}

// Synced reports the counts of a roster sync.
func (presenter *Presenter) Synced(result srquick.SyncResponse, err error) {
	if err != nil {
		presenter.Failure(err)
		return
	}
	presenter.notifier.Notify(LevelSuccess, fmt.Sprintf(messageSyncedFormat, result.CharactersNew, result.CharactersUpdated))
}

// Favorite reports a favorite toggle.
func (presenter *Presenter) Favorite(isFavorite bool, err error) {
	if isFavorite {
		presenter.Outcome(MessageFavoriteOn, err)
		return
	}
	presenter.Outcome(MessageFavoriteOff, err)
}
