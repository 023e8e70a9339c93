package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const bufconnSize = 1 << 20

type fakeGateway struct {
	mu       sync.Mutex
	requests []GatewayRequest
	reply    func(request GatewayRequest) (*structpb.Struct, error)
}

func (gateway *fakeGateway) Call(_ context.Context, message *structpb.Struct) (*structpb.Struct, error) {
	request, err := ParseGatewayRequest(message)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	gateway.mu.Lock()
	gateway.requests = append(gateway.requests, request)
	gateway.mu.Unlock()
	return gateway.reply(request)
}

func (gateway *fakeGateway) lastRequest(test *testing.T) GatewayRequest {
	test.Helper()
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.requests) == 0 {
		test.Fatalf("gateway saw no requests")
	}
	return gateway.requests[len(gateway.requests)-1]
}

func startGateway(test *testing.T, gateway *fakeGateway) *grpc.ClientConn {
	test.Helper()
	listener := bufconn.Listen(bufconnSize)
	grpcServer := grpc.NewServer()
	RegisterGatewayServer(grpcServer, gateway)
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			test.Logf("gRPC server error: %v", serveErr)
		}
	}()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		test.Fatalf("gRPC client init failed: %v", err)
	}
	test.Cleanup(func() {
		grpcServer.Stop()
		_ = conn.Close()
	})
	return conn
}

func TestContainerBackendRoutesThroughGateway(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{reply: func(request GatewayRequest) (*structpb.Struct, error) {
		return GatewayResponse{Status: http.StatusOK, Data: `{"status":"success","data":{"ok":true}}`}.Struct()
	}}
	conn := startGateway(test, gateway)
	backend := NewContainerBackend(conn, Config{
		Environment:  testEnvironment,
		CloudEnv:     "prod-6g8xwsfab2293eb4",
		CloudService: "express-sf1m",
		OpenID:       testOpenID,
	})

	response, err := backend.Send(context.Background(), Request{Method: http.MethodPost, Path: "/api/v1/user/bind", Data: map[string]string{"uid": "123456789"}})
	if err != nil {
		test.Fatalf("send failed: %v", err)
	}
	if response.StatusCode != 0 || response.Status != http.StatusOK || response.HTTPStatus() != http.StatusOK {
		test.Fatalf("expected generic status field, got %+v", response)
	}
	if string(response.Body) != `{"status":"success","data":{"ok":true}}` {
		test.Fatalf("unexpected body %s", response.Body)
	}

	request := gateway.lastRequest(test)
	if request.Path != "/api/v1/user/bind" || request.Method != http.MethodPost {
		test.Fatalf("unexpected gateway request %+v", request)
	}
	if request.Env != "prod-6g8xwsfab2293eb4" {
		test.Fatalf("expected cloud env, got %q", request.Env)
	}
	if request.Data != `{"uid":"123456789"}` {
		test.Fatalf("unexpected data %q", request.Data)
	}
	expectedHeaders := map[string]string{
		HeaderService:       "express-sf1m",
		HeaderFrontendMode:  string(ModeCloud),
		HeaderFrontendEnv:   testEnvironment,
		HeaderFrontendCloud: "prod-6g8xwsfab2293eb4",
		HeaderOpenID:        testOpenID,
	}
	for key, want := range expectedHeaders {
		if request.Header[key] != want {
			test.Fatalf("header %s: expected %q, got %q", key, want, request.Header[key])
		}
	}
	if request.Header[HeaderRequestID] == "" {
		test.Fatalf("expected request id header")
	}
}

func TestContainerBackendAcceptsStructuredData(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{reply: func(request GatewayRequest) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{
			"status": 200,
			"data":   map[string]any{"status": "success", "data": []any{"a"}},
		})
	}}
	conn := startGateway(test, gateway)
	backend := NewContainerBackend(conn, Config{})

	response, err := backend.Send(context.Background(), Request{Path: "/health"})
	if err != nil {
		test.Fatalf("send failed: %v", err)
	}
	if string(response.Body) != `{"data":["a"],"status":"success"}` {
		test.Fatalf("unexpected body %s", response.Body)
	}
	if gateway.lastRequest(test).Data != "" {
		test.Fatalf("expected GET without data")
	}
}

func TestContainerBackendPropagatesRPCFailure(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{reply: func(request GatewayRequest) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "container cold start")
	}}
	conn := startGateway(test, gateway)
	backend := NewContainerBackend(conn, Config{})

	_, err := backend.Send(context.Background(), Request{Path: "/health"})
	if err == nil {
		test.Fatalf("expected error")
	}
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		test.Fatalf("expected wrapped Unavailable status, got %v", err)
	}
}

func TestGatewayRequestRoundTrip(test *testing.T) {
	test.Parallel()
	message, err := GatewayRequest{Path: "/x", Method: "put", Header: map[string]string{"A": "b"}, Data: `{"k":1}`, Env: "env"}.Struct()
	if err != nil {
		test.Fatalf("encode failed: %v", err)
	}
	decoded, err := ParseGatewayRequest(message)
	if err != nil {
		test.Fatalf("decode failed: %v", err)
	}
	if decoded.Method != http.MethodPut || decoded.Header["A"] != "b" || decoded.Data != `{"k":1}` || decoded.Env != "env" {
		test.Fatalf("unexpected decoded request %+v", decoded)
	}
	bad, _ := structpb.NewStruct(map[string]any{"path": "relative"})
	if _, err := ParseGatewayRequest(bad); !errors.Is(err, ErrInvalidRequest) {
		test.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
