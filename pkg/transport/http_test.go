package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const (
	testEnvironment = "development"
	testOpenID      = "openid-dev-1"
	testSecret      = "dev-secret"
)

type capturedRequest struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   string
}

func newCapturingServer(test *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	test.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		payload, _ := io.ReadAll(request.Body)
		captured.method = request.Method
		captured.path = request.URL.Path
		captured.query = request.URL.Query()
		captured.header = request.Header.Clone()
		captured.body = string(payload)
		writer.WriteHeader(status)
		_, _ = writer.Write([]byte(body))
	}))
	test.Cleanup(server.Close)
	return server, captured
}

func TestHTTPBackendSendsIdentificationHeaders(test *testing.T) {
	test.Parallel()
	server, captured := newCapturingServer(test, http.StatusOK, `{"status":"success","data":{}}`)
	backend, err := NewHTTPBackend(Config{BaseURL: server.URL + "/", Environment: testEnvironment})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	response, err := backend.Send(context.Background(), Request{Path: "/api/v1/user/type"})
	if err != nil {
		test.Fatalf("send failed: %v", err)
	}
	if response.HTTPStatus() != http.StatusOK || string(response.Body) != `{"status":"success","data":{}}` {
		test.Fatalf("unexpected response %+v", response)
	}
	if captured.method != http.MethodGet || captured.path != "/api/v1/user/type" {
		test.Fatalf("unexpected request %s %s", captured.method, captured.path)
	}
	if captured.header.Get(HeaderFrontendEnv) != testEnvironment {
		test.Fatalf("expected env header, got %q", captured.header.Get(HeaderFrontendEnv))
	}
	if captured.header.Get(HeaderFrontendMode) != string(ModeLocal) {
		test.Fatalf("expected local mode header, got %q", captured.header.Get(HeaderFrontendMode))
	}
	if captured.header.Get(HeaderFrontendAPIURL) != server.URL {
		test.Fatalf("expected api url header %q, got %q", server.URL, captured.header.Get(HeaderFrontendAPIURL))
	}
	if captured.header.Get(HeaderRequestID) == "" {
		test.Fatalf("expected request id header")
	}
	if captured.header.Get(HeaderAuthorization) != "" {
		test.Fatalf("expected no authorization without dev identity")
	}
	if captured.body != "" {
		test.Fatalf("expected empty GET body, got %q", captured.body)
	}
}

func TestHTTPBackendSerializesWriteBodies(test *testing.T) {
	test.Parallel()
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		server, captured := newCapturingServer(test, http.StatusOK, `{}`)
		backend, err := NewHTTPBackend(Config{BaseURL: server.URL})
		if err != nil {
			test.Fatalf("backend init failed: %v", err)
		}
		_, err = backend.Send(context.Background(), Request{Method: method, Path: "/api/v1/user/bind", Data: map[string]string{"uid": "123456789"}})
		if err != nil {
			test.Fatalf("%s send failed: %v", method, err)
		}
		var decoded map[string]string
		if err := json.Unmarshal([]byte(captured.body), &decoded); err != nil || decoded["uid"] != "123456789" {
			test.Fatalf("%s: unexpected body %q", method, captured.body)
		}
		if captured.header.Get(HeaderContentType) != contentTypeJSON {
			test.Fatalf("%s: expected json content type", method)
		}
	}
}

func TestHTTPBackendEncodesQuery(test *testing.T) {
	test.Parallel()
	server, captured := newCapturingServer(test, http.StatusOK, `{}`)
	backend, err := NewHTTPBackend(Config{BaseURL: server.URL})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	_, err = backend.Send(context.Background(), Request{Path: "/api/user/characters", Query: url.Values{"uid": {"123456789"}}})
	if err != nil {
		test.Fatalf("send failed: %v", err)
	}
	if captured.query.Get("uid") != "123456789" {
		test.Fatalf("expected uid query, got %v", captured.query)
	}
}

func TestHTTPBackendPassesNon2xxThrough(test *testing.T) {
	test.Parallel()
	server, _ := newCapturingServer(test, http.StatusBadRequest, `{"status":"fail","data":{"error":"bad"}}`)
	backend, err := NewHTTPBackend(Config{BaseURL: server.URL})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	response, err := backend.Send(context.Background(), Request{Path: "/x"})
	if err != nil {
		test.Fatalf("expected no transport error, got %v", err)
	}
	if response.StatusCode != http.StatusBadRequest {
		test.Fatalf("expected 400, got %d", response.StatusCode)
	}
}

func TestHTTPBackendAttachesDevIdentity(test *testing.T) {
	test.Parallel()
	server, captured := newCapturingServer(test, http.StatusOK, `{}`)
	backend, err := NewHTTPBackend(Config{BaseURL: server.URL, DevOpenID: testOpenID, DevSecret: testSecret})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	if _, err := backend.Send(context.Background(), Request{Path: "/api/auth/login"}); err != nil {
		test.Fatalf("send failed: %v", err)
	}
	authorization := captured.header.Get(HeaderAuthorization)
	if !strings.HasPrefix(authorization, "Bearer ") {
		test.Fatalf("expected bearer token, got %q", authorization)
	}
	openID, err := ParseDevToken(strings.TrimPrefix(authorization, "Bearer "), testSecret)
	if err != nil {
		test.Fatalf("token did not verify: %v", err)
	}
	if openID != testOpenID {
		test.Fatalf("expected %q, got %q", testOpenID, openID)
	}
	if _, err := ParseDevToken(strings.TrimPrefix(authorization, "Bearer "), "other-secret"); err == nil {
		test.Fatalf("expected verification failure with wrong secret")
	}
}

func TestHTTPBackendFixesTimeout(test *testing.T) {
	test.Parallel()
	backend, err := NewHTTPBackend(Config{BaseURL: "http://127.0.0.1:1", HTTPClient: &http.Client{Timeout: 0}})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	if backend.http.Timeout != RequestTimeout {
		test.Fatalf("expected timeout %v, got %v", RequestTimeout, backend.http.Timeout)
	}
}

func TestHTTPBackendRejectsInvalidInput(test *testing.T) {
	test.Parallel()
	for _, baseURL := range []string{"", "   ", "localhost:3000", "/relative"} {
		if _, err := NewHTTPBackend(Config{BaseURL: baseURL}); !errors.Is(err, ErrInvalidConfig) {
			test.Fatalf("base url %q: expected ErrInvalidConfig, got %v", baseURL, err)
		}
	}
	if _, err := NewHTTPBackend(Config{BaseURL: "http://localhost", DevOpenID: testOpenID}); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected missing dev secret to be rejected, got %v", err)
	}
	backend, err := NewHTTPBackend(Config{BaseURL: "http://localhost"})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	if _, err := backend.Send(context.Background(), Request{Method: http.MethodPatch, Path: "/x"}); !errors.Is(err, ErrInvalidRequest) {
		test.Fatalf("expected ErrInvalidRequest for PATCH, got %v", err)
	}
	if _, err := backend.Send(context.Background(), Request{Path: "x"}); !errors.Is(err, ErrInvalidRequest) {
		test.Fatalf("expected ErrInvalidRequest for relative path, got %v", err)
	}
}

func TestHTTPBackendReportsConnectionFailure(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()
	backend, err := NewHTTPBackend(Config{BaseURL: baseURL})
	if err != nil {
		test.Fatalf("backend init failed: %v", err)
	}
	if _, err := backend.Send(context.Background(), Request{Path: "/health"}); err == nil {
		test.Fatalf("expected connection error")
	}
}

func TestSelectPicksBackendByFlag(test *testing.T) {
	test.Parallel()
	local, err := Select(Config{UseLocalAPI: true, BaseURL: "http://localhost:3000"})
	if err != nil {
		test.Fatalf("select local failed: %v", err)
	}
	if local.Mode() != ModeLocal {
		test.Fatalf("expected local mode, got %s", local.Mode())
	}
	cloud, err := Select(Config{GatewayAddr: "localhost:7443", GatewayInsecure: true})
	if err != nil {
		test.Fatalf("select cloud failed: %v", err)
	}
	if cloud.Mode() != ModeCloud {
		test.Fatalf("expected cloud mode, got %s", cloud.Mode())
	}
	_ = cloud.(*ContainerBackend).Close()
	if _, err := Select(Config{}); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected missing gateway to be rejected, got %v", err)
	}
}
