// Package transport sends SR-Quick API calls through one of two backends: a
// direct HTTP client for locally reachable servers, or the managed container
// gateway reached over gRPC. Select picks the backend once from configuration.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mode identifies the transport backend.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// RequestTimeout bounds every call on both backends.
const RequestTimeout = 10 * time.Second

const (
	HeaderContentType    = "Content-Type"
	HeaderRequestID      = "X-Request-ID"
	HeaderFrontendEnv    = "X-Frontend-Env"
	HeaderFrontendMode   = "X-Frontend-API-Mode"
	HeaderFrontendAPIURL = "X-Frontend-API-URL"
	HeaderFrontendCloud  = "X-Frontend-Cloud-Env"
	HeaderService        = "X-WX-SERVICE"
	HeaderOpenID         = "X-WX-OPENID"
	HeaderAuthorization  = "Authorization"

	contentTypeJSON = "application/json"
)

var (
	// ErrInvalidConfig reports an unusable transport configuration.
	ErrInvalidConfig = errors.New("invalid transport config")
	// ErrInvalidRequest reports a request that cannot be sent.
	ErrInvalidRequest = errors.New("invalid transport request")
)

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Data   any
}

// Response is the backend-native result. The HTTP backend fills StatusCode,
// the container backend fills Status.
type Response struct {
	StatusCode int
	Status     int
	Header     http.Header
	Body       []byte
}

// HTTPStatus returns whichever status field the backend populated.
func (response Response) HTTPStatus() int {
	if response.StatusCode != 0 {
		return response.StatusCode
	}
	return response.Status
}

// Sender is implemented by both backends.
type Sender interface {
	Send(ctx context.Context, request Request) (Response, error)
	Mode() Mode
}

// Config carries the settings both backends need.
type Config struct {
	UseLocalAPI bool
	Environment string

	BaseURL    string
	HTTPClient *http.Client
	DevOpenID  string
	DevSecret  string

	GatewayAddr     string
	GatewayInsecure bool
	CloudEnv        string
	CloudService    string
	OpenID          string

	Logger *zap.Logger
}

// Select builds the backend named by cfg.UseLocalAPI.
func Select(cfg Config) (Sender, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.UseLocalAPI {
		backend, err := NewHTTPBackend(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Logger.Info("transport selected", zap.String("mode", string(ModeLocal)), zap.String("base_url", backend.baseURL))
		return backend, nil
	}
	backend, err := DialContainerBackend(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("transport selected", zap.String("mode", string(ModeCloud)), zap.String("cloud_env", cfg.CloudEnv), zap.String("service", cfg.CloudService))
	return backend, nil
}

func normalizeRequest(request Request) (Request, error) {
	method := strings.ToUpper(strings.TrimSpace(request.Method))
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return Request{}, fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, method)
	}
	path := strings.TrimSpace(request.Path)
	if !strings.HasPrefix(path, "/") {
		return Request{}, fmt.Errorf("%w: path must start with /", ErrInvalidRequest)
	}
	request.Method = method
	request.Path = path
	return request, nil
}

// hasBody reports whether data is serialized for this method.
func hasBody(request Request) bool {
	if request.Data == nil {
		return false
	}
	switch request.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func pathWithQuery(request Request) string {
	if len(request.Query) == 0 {
		return request.Path
	}
	separator := "?"
	if strings.Contains(request.Path, "?") {
		separator = "&"
	}
	return request.Path + separator + request.Query.Encode()
}
