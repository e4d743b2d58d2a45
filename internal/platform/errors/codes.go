// Package errors provides structured error handling with HTTP status mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeRequestInvalid represents an unreadable or malformed request body.
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Post errors
	CodePostTitleInvalid   Code = "POST_TITLE_INVALID"
	CodePostContentInvalid Code = "POST_CONTENT_INVALID"

	// User errors
	CodeUserEmailInvalid    Code = "USER_EMAIL_INVALID"
	CodeUserPasswordInvalid Code = "USER_PASSWORD_INVALID"
	CodeEmailExists         Code = "EMAIL_EXISTS"

	// Auth errors
	CodeCredentialsInvalid Code = "CREDENTIALS_INVALID"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodePermissionDenied   Code = "PERMISSION_DENIED"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeRequestInvalid,
		CodePostTitleInvalid,
		CodePostContentInvalid,
		CodeUserEmailInvalid,
		CodeUserPasswordInvalid:
		return http.StatusBadRequest

	// Unauthorized - missing or bad credentials
	case CodeCredentialsInvalid,
		CodeTokenInvalid:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	// NotFound - resource doesn't exist, or the caller must not learn it does
	case CodeNotFound:
		return http.StatusNotFound

	case CodeEmailExists:
		return http.StatusConflict

	case CodeStoreUnavailable,
		CodeCacheUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
