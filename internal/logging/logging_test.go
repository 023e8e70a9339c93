package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperationLoggerLevels(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zapcore.DebugLevel)
	operationLogger := NewOperationLogger(zap.New(core))
	operationLogger.LogOperation(context.Background(), srquick.OperationLog{
		Operation:  srquick.OperationHealth,
		Method:     "GET",
		Path:       "/health",
		Outcome:    "success",
		HTTPStatus: 200,
		Duration:   5 * time.Millisecond,
	})
	operationLogger.LogOperation(context.Background(), srquick.OperationLog{
		Operation: srquick.OperationBindUID,
		Outcome:   "fail",
		Error:     errors.New("UID不存在"),
	})
	entries := recorded.All()
	if len(entries) != 2 {
		test.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["path"] != "/health" {
		test.Fatalf("unexpected success entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "UID不存在" {
		test.Fatalf("unexpected failure entry %+v", entries[1])
	}
}

func TestNewRejectsUnknownLevel(test *testing.T) {
	test.Parallel()
	if _, err := New("loud"); err == nil {
		test.Fatalf("expected error for unknown level")
	}
	logger, err := New("warn")
	if err != nil {
		test.Fatalf("logger init failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		test.Fatalf("expected info disabled at warn level")
	}
}
