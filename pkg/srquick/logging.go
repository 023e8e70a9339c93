package srquick

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ClientOption configures a Client instance.
type ClientOption func(*Client)

// OperationLogger records every request a Client completes.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one finished API call.
type OperationLog struct {
	Operation  string
	Method     string
	Path       string
	Outcome    string
	HTTPStatus int
	Duration   time.Duration
	Error      error
}

// WithOperationLogger wires a logger that receives callbacks for every request.
func WithOperationLogger(logger OperationLogger) ClientOption {
	return func(client *Client) {
		client.operationLogger = logger
	}
}

// WithLogger sets the diagnostic logger. Transport causes are logged here
// instead of being returned.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithMetrics registers request metrics on registerer.
func WithMetrics(registerer prometheus.Registerer) ClientOption {
	return func(client *Client) {
		client.registerer = registerer
	}
}

// WithClock overrides the clock used for request durations.
func WithClock(now func() time.Time) ClientOption {
	return func(client *Client) {
		if now != nil {
			client.now = now
		}
	}
}
