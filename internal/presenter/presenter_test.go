package presenter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/srquick/pkg/session"
	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	levels   []Level
	messages []string
}

func (notifier *recordingNotifier) Notify(level Level, message string) {
	notifier.levels = append(notifier.levels, level)
	notifier.messages = append(notifier.messages, message)
}

func TestPresenterMessages(test *testing.T) {
	test.Parallel()
	unauthorized := &srquick.APIError{Kind: srquick.ErrorKindFail, Code: srquick.CodeMissingOpenID, Message: "缺少用户身份"}
	testCases := []struct {
		name            string
		present         func(*Presenter)
		expectedLevel   Level
		expectedMessage string
	}{
		{name: "new user login", present: func(p *Presenter) { p.Login(session.LoginResult{OK: true, IsNewUser: true}) }, expectedLevel: LevelSuccess, expectedMessage: MessageWelcomeNew},
		{name: "returning login", present: func(p *Presenter) { p.Login(session.LoginResult{OK: true}) }, expectedLevel: LevelSuccess, expectedMessage: MessageWelcome},
		{name: "unauthorized login", present: func(p *Presenter) { p.Login(session.LoginResult{Err: unauthorized}) }, expectedLevel: LevelFailure, expectedMessage: srquick.MessageUnauthorized},
		{name: "sync counts", present: func(p *Presenter) { p.Synced(srquick.SyncResponse{CharactersNew: 2, CharactersUpdated: 1}, nil) }, expectedLevel: LevelSuccess, expectedMessage: "同步完成：新增 2，更新 1"},
		{name: "favorite off", present: func(p *Presenter) { p.Favorite(false, nil) }, expectedLevel: LevelSuccess, expectedMessage: MessageFavoriteOff},
		{name: "primary set", present: func(p *Presenter) { p.Outcome(MessagePrimarySet, nil) }, expectedLevel: LevelSuccess, expectedMessage: MessagePrimarySet},
		{name: "invalid uid", present: func(p *Presenter) { p.Failure(fmt.Errorf("parse: %w", srquick.ErrInvalidUID)) }, expectedLevel: LevelFailure, expectedMessage: MessageInvalidUID},
		{name: "server failure", present: func(p *Presenter) {
			p.Outcome(MessageCharacterDeleted, &srquick.APIError{Kind: srquick.ErrorKindError, Message: "服务器开小差了"})
		}, expectedLevel: LevelFailure, expectedMessage: "服务器开小差了"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			notifier := &recordingNotifier{}
			testCase.present(New(notifier))
			if len(notifier.messages) != 1 {
				test.Fatalf("expected one notice, got %v", notifier.messages)
			}
			if notifier.levels[0] != testCase.expectedLevel || notifier.messages[0] != testCase.expectedMessage {
				test.Fatalf("expected %s %q, got %s %q", testCase.expectedLevel, testCase.expectedMessage, notifier.levels[0], notifier.messages[0])
			}
		})
	}
}

func TestLogoutReportsCleanupFailure(test *testing.T) {
	test.Parallel()
	notifier := &recordingNotifier{}
	New(notifier).Logout(errors.New("remove userInfo: disk full"))
	if len(notifier.messages) != 2 || notifier.messages[0] != MessageLoggedOut || notifier.levels[1] != LevelInfo {
		test.Fatalf("unexpected notices %v", notifier.messages)
	}
}

func TestWriterNotifierFormatsLines(test *testing.T) {
	test.Parallel()
	var buffer bytes.Buffer
	notifier := NewWriterNotifier(&buffer)
	notifier.Notify(LevelSuccess, MessageAccountAdded)
	notifier.Notify(LevelFailure, "UID不存在")
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 2 || lines[0] != "✓ "+MessageAccountAdded || lines[1] != "✗ UID不存在" {
		test.Fatalf("unexpected output %q", buffer.String())
	}
}

func TestZapNotifierLogsNotices(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zap.InfoLevel)
	notifier := NewZapNotifier(zap.New(core))
	notifier.Notify(LevelFailure, "UID不存在")
	entries := recorded.All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel || entries[0].ContextMap()["message"] != "UID不存在" {
		test.Fatalf("unexpected log entries %+v", entries)
	}
}
