package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPBackend calls a directly reachable API server.
type HTTPBackend struct {
	baseURL     string
	environment string
	identity    *DevIdentity
	http        *http.Client
	logger      *zap.Logger
}

// NewHTTPBackend validates cfg.BaseURL and builds the backend.
func NewHTTPBackend(cfg Config) (*HTTPBackend, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required in local mode", ErrInvalidConfig)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base URL: %v", ErrInvalidConfig, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be absolute", ErrInvalidConfig)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// The timeout is fixed regardless of the injected client.
	clientCopy := *httpClient
	clientCopy.Timeout = RequestTimeout

	var identity *DevIdentity
	if strings.TrimSpace(cfg.DevOpenID) != "" {
		identity, err = NewDevIdentity(cfg.DevOpenID, cfg.DevSecret)
		if err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPBackend{
		baseURL:     strings.TrimRight(parsed.String(), "/"),
		environment: cfg.Environment,
		identity:    identity,
		http:        &clientCopy,
		logger:      logger,
	}, nil
}

// Mode reports ModeLocal.
func (backend *HTTPBackend) Mode() Mode {
	return ModeLocal
}

// Send performs one HTTP request. Non-2xx statuses are not errors here; the
// body still carries an envelope for the caller to classify.
func (backend *HTTPBackend) Send(ctx context.Context, request Request) (Response, error) {
	request, err := normalizeRequest(request)
	if err != nil {
		return Response{}, err
	}
	var bodyReader io.Reader
	if hasBody(request) {
		payload, err := json.Marshal(request.Data)
		if err != nil {
			return Response{}, fmt.Errorf("%w: marshal body: %v", ErrInvalidRequest, err)
		}
		bodyReader = bytes.NewReader(payload)
	}
	target := backend.baseURL + pathWithQuery(request)
	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, target, bodyReader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpRequest.Header.Set(HeaderContentType, contentTypeJSON)
	httpRequest.Header.Set(HeaderFrontendEnv, backend.environment)
	httpRequest.Header.Set(HeaderFrontendMode, string(ModeLocal))
	httpRequest.Header.Set(HeaderFrontendAPIURL, backend.baseURL)
	httpRequest.Header.Set(HeaderRequestID, uuid.NewString())
	if backend.identity != nil {
		token, err := backend.identity.Token()
		if err != nil {
			return Response{}, err
		}
		httpRequest.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	backend.logger.Debug("local api request", zap.String("method", request.Method), zap.String("url", target))
	httpResponse, err := backend.http.Do(httpRequest)
	if err != nil {
		return Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header,
		Body:       body,
	}, nil
}
