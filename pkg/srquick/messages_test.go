package srquick

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUserMessage(test *testing.T) {
	test.Parallel()
	const (
		caseNil                = "nil error"
		caseMissingOpenID      = "fail with missing openid"
		caseUnauthorizedStatus = "fail with 401"
		caseFailMessage        = "fail with message"
		caseFailEmpty          = "fail without message"
		caseErrorMessage       = "error with message"
		caseErrorEmpty         = "error without message"
		caseNetwork            = "network"
		caseWrappedAPIError    = "wrapped api error"
		casePlainError         = "plain error"
		caseEmptyPlainError    = "empty plain error"
	)
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: caseNil, err: nil, expected: MessageUnknown},
		{name: caseMissingOpenID, err: &APIError{Kind: ErrorKindFail, Message: "missing", Code: CodeMissingOpenID}, expected: MessageUnauthorized},
		{name: caseUnauthorizedStatus, err: &APIError{Kind: ErrorKindFail, Message: "x", HTTPStatus: http.StatusUnauthorized}, expected: MessageUnauthorized},
		{name: caseFailMessage, err: &APIError{Kind: ErrorKindFail, Message: "UID不存在"}, expected: "UID不存在"},
		{name: caseFailEmpty, err: &APIError{Kind: ErrorKindFail}, expected: MessageRequestRejected},
		{name: caseErrorMessage, err: &APIError{Kind: ErrorKindError, Message: "服务器开小差了"}, expected: "服务器开小差了"},
		{name: caseErrorEmpty, err: &APIError{Kind: ErrorKindError}, expected: MessageServerFailure},
		{name: caseNetwork, err: newAPIError(ErrNetworkUnreachable, MessageNetworkUnreachable), expected: MessageNetworkUnreachable},
		{name: caseWrappedAPIError, err: fmt.Errorf("sync: %w", &APIError{Kind: ErrorKindFail, Message: "bad"}), expected: "bad"},
		{name: casePlainError, err: errors.New("disk full"), expected: "disk full"},
		{name: caseEmptyPlainError, err: errors.New(""), expected: MessageGeneric},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if message := UserMessage(testCase.err); message != testCase.expected {
				test.Fatalf("expected %q, got %q", testCase.expected, message)
			}
		})
	}
}

func TestIsUnauthorized(test *testing.T) {
	test.Parallel()
	if !IsUnauthorized(&APIError{HTTPStatus: http.StatusUnauthorized}) {
		test.Fatalf("expected 401 to be unauthorized")
	}
	if !IsUnauthorized(fmt.Errorf("login: %w", &APIError{Code: CodeMissingOpenID})) {
		test.Fatalf("expected MISSING_OPENID to be unauthorized")
	}
	if IsUnauthorized(&APIError{HTTPStatus: http.StatusForbidden}) || IsUnauthorized(errors.New("x")) || IsUnauthorized(nil) {
		test.Fatalf("unexpected unauthorized")
	}
}

func TestNewUID(test *testing.T) {
	test.Parallel()
	uid, err := NewUID(" 123456789 ")
	if err != nil || uid.String() != "123456789" {
		test.Fatalf("expected trimmed uid, got %q (%v)", uid.String(), err)
	}
	for _, raw := range []string{"", "12345678", "1234567890", "12345678a", "１２３４５６７８９"} {
		if _, err := NewUID(raw); !errors.Is(err, ErrInvalidUID) {
			test.Fatalf("uid %q: expected ErrInvalidUID, got %v", raw, err)
		}
	}
	if _, err := NewCharacterID("  "); !errors.Is(err, ErrInvalidCharacterID) {
		test.Fatalf("expected ErrInvalidCharacterID, got %v", err)
	}
}

func TestWrapError(test *testing.T) {
	test.Parallel()
	if WrapError("a", "b", "c", nil) != nil {
		test.Fatalf("expected nil for nil error")
	}
	wrapped := WrapError("client", "metrics", "register", ErrInvalidClientConfig)
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError")
	}
	if operationError.Operation() != "client" || operationError.Subject() != "metrics" || operationError.Code() != "register" {
		test.Fatalf("unexpected metadata %+v", operationError)
	}
	if !errors.Is(wrapped, ErrInvalidClientConfig) {
		test.Fatalf("expected wrapped sentinel")
	}
	if wrapped.Error() != "client.metrics.register: invalid client config" {
		test.Fatalf("unexpected message %q", wrapped.Error())
	}
}
