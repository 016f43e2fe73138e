package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned alongside HTTP statuses.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeCustomerNotFound   = "CUSTOMER_NOT_FOUND"
	CodeCustomerCodeExists = "CUSTOMER_CODE_EXISTS"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeTenantNotResolved  = "TENANT_NOT_RESOLVED"
	CodeAdNotFound         = "AD_NOT_FOUND"
	CodeDocumentNotFound   = "DOCUMENT_NOT_FOUND"
	CodeContactNotFound    = "CONTACT_NOT_FOUND"
	CodeUpstreamError      = "UPSTREAM_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// APIError is an error carrying the HTTP status and client-facing message
// for a failed request. Processors return domain sentinels; MapError turns
// them into APIErrors at the handler boundary.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Internal is the underlying error, logged but never sent to clients.
	Internal error
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

// BadRequest creates a 400 error
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// Unauthorized creates a 401 error with a generic message so callers
// cannot probe for valid accounts.
func Unauthorized(message string) *APIError {
	return &APIError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden creates a 403 error
func Forbidden(message string) *APIError {
	return &APIError{StatusCode: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// NotFound creates a 404 error
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// Conflict creates a 409 error
func Conflict(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: code, Message: message}
}

// BadGateway creates a 502 error for upstream/integration failures
func BadGateway(message string, internal error) *APIError {
	return &APIError{StatusCode: http.StatusBadGateway, Code: CodeUpstreamError, Message: message, Internal: internal}
}

// InternalError creates a sanitized 500 error - never exposes internal details
func InternalError(internal error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
		Internal:   internal,
	}
}
