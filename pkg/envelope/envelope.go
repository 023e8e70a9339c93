// Package envelope decodes the JSON wrappers every SR-Quick backend response uses.
//
// Two wire protocols exist. The tagged protocol carries a "status"
// discriminator ("success", "fail", "error"); the legacy protocol carries a
// boolean "success" flag next to "data" and "error". Both decode into the same
// closed set of variants so callers switch over one union.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Protocol selects the wire envelope a response is expected to use.
type Protocol int

const (
	// ProtocolTagged is the {status, data} envelope of the /api/v1 namespace.
	ProtocolTagged Protocol = iota
	// ProtocolLegacy is the {success, data, error} envelope of /api/auth and /api/user.
	ProtocolLegacy
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// ErrMalformedBody reports a body that is not valid JSON.
var ErrMalformedBody = errors.New("malformed envelope body")

// Envelope is one decoded response. The concrete type is one of Success,
// Fail, ErrorResult or Unrecognized.
type Envelope interface {
	envelope()
}

// Success carries the endpoint payload untouched.
type Success struct {
	Data json.RawMessage
}

// Fail reports rejected client input.
type Fail struct {
	Error   string
	Code    string
	Details json.RawMessage
	Raw     json.RawMessage
}

// ErrorResult reports a server side failure.
type ErrorResult struct {
	Message string
	Code    string
	Data    json.RawMessage
}

// Unrecognized is any body whose discriminator is missing or unknown.
type Unrecognized struct {
	Status string
}

func (Success) envelope()      {}
func (Fail) envelope()         {}
func (ErrorResult) envelope()  {}
func (Unrecognized) envelope() {}

type taggedWire struct {
	Status  *string         `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

type failWire struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
	Code    json.RawMessage `json:"code"`
}

type legacyWire struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    json.RawMessage `json:"code"`
}

// Decode parses body with the given protocol. httpStatus is only consulted by
// the legacy protocol, whose success depends on it.
func Decode(protocol Protocol, httpStatus int, body []byte) (Envelope, error) {
	document, err := unwrapBody(body)
	if err != nil {
		return nil, err
	}
	switch protocol {
	case ProtocolLegacy:
		return decodeLegacy(httpStatus, document)
	default:
		return decodeTagged(document)
	}
}

// unwrapBody returns the JSON document held by body. A body that is itself a
// JSON string literal is unquoted once and its content used as the document.
func unwrapBody(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedBody)
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		trimmed = bytes.TrimSpace([]byte(text))
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedBody)
	}
	return trimmed, nil
}

func decodeTagged(document []byte) (Envelope, error) {
	var wire taggedWire
	if err := json.Unmarshal(document, &wire); err != nil {
		// Valid JSON that is not an object (array, number) has no discriminator.
		return Unrecognized{}, nil
	}
	if wire.Status == nil {
		return Unrecognized{}, nil
	}
	switch *wire.Status {
	case StatusSuccess:
		return Success{Data: wire.Data}, nil
	case StatusFail:
		result := Fail{Raw: wire.Data}
		var details failWire
		if len(wire.Data) > 0 && json.Unmarshal(wire.Data, &details) == nil {
			result.Error = details.Error
			result.Details = details.Details
			result.Code = codeString(details.Code)
		}
		return result, nil
	case StatusError:
		return ErrorResult{
			Message: wire.Message,
			Code:    codeString(wire.Code),
			Data:    wire.Data,
		}, nil
	default:
		return Unrecognized{Status: *wire.Status}, nil
	}
}

func decodeLegacy(httpStatus int, document []byte) (Envelope, error) {
	var wire legacyWire
	if err := json.Unmarshal(document, &wire); err != nil || wire.Success == nil {
		return Unrecognized{}, nil
	}
	if *wire.Success && httpStatus == http.StatusOK {
		return Success{Data: wire.Data}, nil
	}
	if httpStatus >= http.StatusInternalServerError {
		return ErrorResult{Message: wire.Error, Code: codeString(wire.Code), Data: wire.Data}, nil
	}
	return Fail{Error: wire.Error, Code: codeString(wire.Code), Raw: document}, nil
}

// codeString normalizes a string or numeric code to its text form.
func codeString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err == nil {
		if integer, err := strconv.ParseInt(number.String(), 10, 64); err == nil {
			return strconv.FormatInt(integer, 10)
		}
		return number.String()
	}
	return strings.TrimSpace(string(trimmed))
}
