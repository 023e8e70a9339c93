package srquick

import (
	"errors"
	"net/http"
)

// UserMessage maps any error to a short message fit for display.
func UserMessage(err error) string {
	if err == nil {
		return MessageUnknown
	}
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return firstNonEmpty(err.Error(), MessageGeneric)
	}
	switch apiError.Kind {
	case ErrorKindFail:
		if IsUnauthorized(apiError) {
			return MessageUnauthorized
		}
		return firstNonEmpty(apiError.Message, MessageRequestRejected)
	case ErrorKindError:
		return firstNonEmpty(apiError.Message, MessageServerFailure)
	default:
		return firstNonEmpty(apiError.Message, MessageGeneric)
	}
}

// IsUnauthorized reports whether err means the caller has no usable identity.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	return apiError.HTTPStatus == http.StatusUnauthorized || apiError.Code == CodeMissingOpenID
}
