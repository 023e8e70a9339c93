// Package srquick is the SR-Quick API client. Every call goes through Request,
// which turns the backend envelope into either the endpoint payload or an
// *APIError carrying a user-facing message.
package srquick

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/envelope"
	"github.com/MarkoPoloResearchLab/srquick/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Client issues SR-Quick API calls over a transport.Sender.
type Client struct {
	sender          transport.Sender
	logger          *zap.Logger
	operationLogger OperationLogger
	registerer      prometheus.Registerer
	metrics         *clientMetrics
	inflight        singleflight.Group
	now             func() time.Time
}

// RequestOptions describes one call made through Request.
type RequestOptions struct {
	Method string
	Data   any
	Query  url.Values
	// Protocol defaults to envelope.ProtocolTagged.
	Protocol envelope.Protocol
	// FallbackMessage replaces the generic message when the backend gives none.
	FallbackMessage string
	// Operation labels logs and metrics.
	Operation string
}

// NewClient constructs a client bound to sender.
func NewClient(sender transport.Sender, options ...ClientOption) (*Client, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidClientConfig)
	}
	client := &Client{
		sender: sender,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	if client.registerer != nil {
		metrics, err := newClientMetrics(client.registerer)
		if err != nil {
			return nil, WrapError("client", "metrics", "register", err)
		}
		client.metrics = metrics
	}
	return client, nil
}

// Mode reports which transport backend the client uses.
func (client *Client) Mode() transport.Mode {
	return client.sender.Mode()
}

// Request performs one call and decodes the success payload into T. Every
// failure is an *APIError.
func Request[T any](ctx context.Context, client *Client, path string, options RequestOptions) (T, error) {
	var result T
	err := client.execute(ctx, path, options, func(data json.RawMessage) error {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil
		}
		return json.Unmarshal(trimmed, &result)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (client *Client) execute(ctx context.Context, path string, options RequestOptions, decode func(json.RawMessage) error) error {
	operation := options.Operation
	if operation == "" {
		operation = operationRequest
	}
	method := strings.ToUpper(strings.TrimSpace(options.Method))
	if method == "" {
		method = http.MethodGet
	}
	options.Method = method

	started := client.now()
	status, err := client.roundTrip(ctx, path, options, decode)
	elapsed := client.now().Sub(started)

	outcome := outcomeOf(err)
	client.metrics.observe(operation, outcome, elapsed)
	if client.operationLogger != nil {
		client.operationLogger.LogOperation(ctx, OperationLog{
			Operation:  operation,
			Method:     method,
			Path:       path,
			Outcome:    outcome,
			HTTPStatus: status,
			Duration:   elapsed,
			Error:      err,
		})
	}
	return err
}

func (client *Client) roundTrip(ctx context.Context, path string, options RequestOptions, decode func(json.RawMessage) error) (int, error) {
	response, err := client.sender.Send(ctx, transport.Request{
		Method: options.Method,
		Path:   path,
		Query:  options.Query,
		Data:   options.Data,
	})
	if err != nil {
		client.logger.Warn("api transport failure", zap.String("path", path), zap.String("mode", string(client.sender.Mode())), zap.Error(err))
		return 0, newAPIError(ErrNetworkUnreachable, MessageNetworkUnreachable)
	}
	status := response.HTTPStatus()

	decoded, err := envelope.Decode(options.Protocol, status, response.Body)
	if err != nil {
		client.logger.Warn("api response not parsable", zap.String("path", path), zap.Int("status", status), zap.Error(err))
		return status, malformed(status)
	}

	switch result := decoded.(type) {
	case envelope.Success:
		if err := decode(result.Data); err != nil {
			client.logger.Warn("api payload does not match", zap.String("path", path), zap.Error(err))
			return status, malformed(status)
		}
		return status, nil
	case envelope.Fail:
		return status, &APIError{
			Message:    firstNonEmpty(result.Error, options.FallbackMessage, MessageRequestRejected),
			Kind:       ErrorKindFail,
			Code:       result.Code,
			Details:    result.Details,
			Raw:        result.Raw,
			HTTPStatus: status,
			cause:      ErrRequestRejected,
		}
	case envelope.ErrorResult:
		return status, &APIError{
			Message:    firstNonEmpty(result.Message, options.FallbackMessage, MessageServerFailure),
			Kind:       ErrorKindError,
			Code:       result.Code,
			Raw:        result.Data,
			HTTPStatus: status,
			cause:      ErrServerFailure,
		}
	default:
		unexpected := newAPIError(ErrUnexpectedFormat, MessageUnexpectedFormat)
		unexpected.HTTPStatus = status
		return status, unexpected
	}
}

func malformed(status int) *APIError {
	apiError := newAPIError(ErrMalformedResponse, MessageMalformedResponse)
	apiError.HTTPStatus = status
	return apiError
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrRequestRejected):
		return outcomeFail
	case errors.Is(err, ErrServerFailure):
		return outcomeError
	case errors.Is(err, ErrNetworkUnreachable):
		return outcomeNetwork
	case errors.Is(err, ErrMalformedResponse):
		return outcomeMalformed
	default:
		return outcomeUnexpectedFormat
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// shared runs call once per key while a call with that key is in flight.
// Concurrent callers receive the same result. The call runs detached from
// any one caller's cancellation; a caller whose ctx ends stops waiting and
// gets a network error while the others keep theirs.
func shared[T any](ctx context.Context, client *Client, key string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	detached := context.WithoutCancel(ctx)
	results := client.inflight.DoChan(key, func() (any, error) {
		return call(detached)
	})
	select {
	case <-ctx.Done():
		client.logger.Debug("caller left shared request", zap.String("key", key), zap.Error(ctx.Err()))
		return zero, newAPIError(ErrNetworkUnreachable, MessageNetworkUnreachable)
	case result := <-results:
		if result.Err != nil {
			return zero, result.Err
		}
		return result.Val.(T), nil
	}
}

func inflightKey(operation string, parts ...string) string {
	return strings.Join(append([]string{operation}, parts...), inflightKeyDelimiter)
}
