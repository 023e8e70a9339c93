// Package grpcserver serves the container gateway RPC in front of an HTTP
// handler, standing in for the managed callContainer platform.
package grpcserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/pkg/transport"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	errorInvalidGatewayRequest = "invalid_gateway_request"
	errorUnknownService        = "unknown_service"
	errorEncodeResponse        = "encode_response"
)

var errUnknownService = errors.New("unknown container service")

// Option configures a GatewayServer.
type Option func(*GatewayServer)

// WithService restricts calls to requests naming service in X-WX-SERVICE.
func WithService(service string) Option {
	return func(server *GatewayServer) {
		server.service = strings.TrimSpace(service)
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(server *GatewayServer) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// GatewayServer forwards each Call to handler as an in-process HTTP request.
type GatewayServer struct {
	handler http.Handler
	service string
	logger  *zap.Logger
}

// NewGatewayServer constructs a gateway over handler.
func NewGatewayServer(handler http.Handler, options ...Option) *GatewayServer {
	server := &GatewayServer{handler: handler, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	return server
}

func (server *GatewayServer) Call(ctx context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	started := time.Now()
	request, err := transport.ParseGatewayRequest(message)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	if server.service != "" && request.Header[transport.HeaderService] != server.service {
		return nil, mapToGRPCError(errUnknownService)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, request.Path, strings.NewReader(request.Data))
	if err != nil {
		return nil, mapToGRPCError(errors.Join(transport.ErrInvalidRequest, err))
	}
	for key, value := range request.Header {
		httpRequest.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, httpRequest)
	result := recorder.Result()
	defer result.Body.Close()

	header := map[string]string{}
	for key := range result.Header {
		header[key] = result.Header.Get(key)
	}
	reply, err := transport.GatewayResponse{
		Status: result.StatusCode,
		Header: header,
		Data:   recorder.Body.String(),
	}.Struct()
	if err != nil {
		server.logger.Error("gateway response encoding failed", zap.Error(err))
		return nil, status.Error(codes.Internal, errorEncodeResponse)
	}
	server.logger.Info("gateway call",
		zap.String("method", request.Method),
		zap.String("path", request.Path),
		zap.String("env", request.Env),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)
	return reply, nil
}

func mapToGRPCError(source error) error {
	if errors.Is(source, transport.ErrInvalidRequest) {
		return status.Error(codes.InvalidArgument, errorInvalidGatewayRequest)
	}
	if errors.Is(source, errUnknownService) {
		return status.Error(codes.NotFound, errorUnknownService)
	}
	return status.Error(codes.Internal, source.Error())
}
