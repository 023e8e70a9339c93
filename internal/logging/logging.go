// Package logging builds the process logger and adapts it to the client's
// operation callbacks.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"go.uber.org/zap"
)

const levelDebug = "debug"

// New returns a development logger for the debug level and a production
// logger otherwise.
func New(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	var cfg zap.Config
	if atomicLevel.String() == levelDebug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = atomicLevel
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return logger, nil
}

// OperationLogger writes one entry per finished client request.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger returns an srquick.OperationLogger over logger.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger}
}

func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry srquick.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.String("outcome", entry.Outcome),
		zap.Int("http_status", entry.HTTPStatus),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("api request failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Debug("api request", fields...)
}
