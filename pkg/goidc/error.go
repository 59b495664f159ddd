package goidc

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by storage managers when the entity requested
// does not exist.
var ErrNotFound = errors.New("entity not found")

type ErrorCode string

const (
	ErrorCodeAccessDenied               ErrorCode = "access_denied"
	ErrorCodeInvalidRequest             ErrorCode = "invalid_request"
	ErrorCodeUnauthorizedClient         ErrorCode = "unauthorized_client"
	ErrorCodeInvalidScope               ErrorCode = "invalid_scope"
	ErrorCodeUnsupportedResponseType    ErrorCode = "unsupported_response_type"
	ErrorCodeInvalidRequestRedirectURI  ErrorCode = "invalid_request_redirect_uri"
	ErrorCodeInvalidOpenIDRequestObject ErrorCode = "invalid_openid_request_object"
	ErrorCodeInvalidRequestURI          ErrorCode = "invalid_request_uri"
	ErrorCodeLoginRequired              ErrorCode = "login_required"
	ErrorCodeSessionSelectionRequired   ErrorCode = "session_selection_required"
	ErrorCodeUserMismatched             ErrorCode = "user_mismatched"
	ErrorCodeInternalError              ErrorCode = "internal_error"
)

func (c ErrorCode) StatusCode() int {
	switch c {
	case ErrorCodeAccessDenied:
		return http.StatusForbidden
	case ErrorCodeUnauthorizedClient:
		return http.StatusUnauthorized
	case ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
	wrapped     error
}

func NewError(code ErrorCode, desc string) Error {
	return Error{
		Code:        code,
		Description: desc,
	}
}

func WrapError(code ErrorCode, desc string, err error) Error {
	return Error{
		Code:        code,
		Description: desc,
		wrapped:     err,
	}
}

func (err Error) Error() string {
	if err.wrapped == nil {
		return fmt.Sprintf("%s %s", err.Code, err.Description)
	}

	return fmt.Sprintf("%s %s: %v", err.Code, err.Description, err.wrapped)
}

func (err Error) StatusCode() int {
	return err.Code.StatusCode()
}

func (err Error) Unwrap() error {
	return err.wrapped
}
