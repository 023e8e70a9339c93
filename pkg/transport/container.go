package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContainerBackend calls the managed container gateway over gRPC.
type ContainerBackend struct {
	conn        *grpc.ClientConn
	ownsConn    bool
	environment string
	cloudEnv    string
	service     string
	openID      string
	logger      *zap.Logger
}

// DialContainerBackend connects lazily to cfg.GatewayAddr. Connection errors
// surface on the first Send.
func DialContainerBackend(cfg Config) (*ContainerBackend, error) {
	addr := strings.TrimSpace(cfg.GatewayAddr)
	if addr == "" {
		return nil, fmt.Errorf("%w: gateway address is required in cloud mode", ErrInvalidConfig)
	}
	dialOptions := []grpc.DialOption{}
	if cfg.GatewayInsecure {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	conn, err := grpc.NewClient(addr, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("connect gateway: %w", err)
	}
	backend := NewContainerBackend(conn, cfg)
	backend.ownsConn = true
	return backend, nil
}

// NewContainerBackend wraps an existing connection, which the caller closes.
func NewContainerBackend(conn *grpc.ClientConn, cfg Config) *ContainerBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContainerBackend{
		conn:        conn,
		environment: cfg.Environment,
		cloudEnv:    cfg.CloudEnv,
		service:     cfg.CloudService,
		openID:      strings.TrimSpace(cfg.OpenID),
		logger:      logger,
	}
}

// Mode reports ModeCloud.
func (backend *ContainerBackend) Mode() Mode {
	return ModeCloud
}

// Close releases the connection when the backend dialed it.
func (backend *ContainerBackend) Close() error {
	if backend.ownsConn {
		return backend.conn.Close()
	}
	return nil
}

// Send performs one gateway call.
func (backend *ContainerBackend) Send(ctx context.Context, request Request) (Response, error) {
	request, err := normalizeRequest(request)
	if err != nil {
		return Response{}, err
	}
	gatewayRequest := GatewayRequest{
		Path:   pathWithQuery(request),
		Method: request.Method,
		Env:    backend.cloudEnv,
		Header: map[string]string{
			HeaderService:       backend.service,
			HeaderContentType:   contentTypeJSON,
			HeaderFrontendEnv:   backend.environment,
			HeaderFrontendMode:  string(ModeCloud),
			HeaderFrontendCloud: backend.cloudEnv,
			HeaderRequestID:     uuid.NewString(),
		},
	}
	if backend.openID != "" {
		gatewayRequest.Header[HeaderOpenID] = backend.openID
	}
	if hasBody(request) {
		payload, err := json.Marshal(request.Data)
		if err != nil {
			return Response{}, fmt.Errorf("%w: marshal body: %v", ErrInvalidRequest, err)
		}
		gatewayRequest.Data = string(payload)
	}
	message, err := gatewayRequest.Struct()
	if err != nil {
		return Response{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	backend.logger.Debug("cloud api request", zap.String("method", request.Method), zap.String("path", gatewayRequest.Path))
	reply := new(structpb.Struct)
	if err := backend.conn.Invoke(callCtx, GatewayCallMethod, message, reply); err != nil {
		return Response{}, fmt.Errorf("gateway call: %w", err)
	}
	gatewayResponse, err := ParseGatewayResponse(reply)
	if err != nil {
		return Response{}, err
	}
	header := http.Header{}
	for key, value := range gatewayResponse.Header {
		header.Set(key, value)
	}
	return Response{
		Status: gatewayResponse.Status,
		Header: header,
		Body:   []byte(gatewayResponse.Data),
	}, nil
}
