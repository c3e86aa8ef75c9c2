package dto

import (
	"net/http"

	"github.com/palletledger/backend/internal/domain/shared"
)

// Domain error codes are passed through unchanged; see shared.Code*.
// The codes below are raised by the transport layer itself.

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "INVALID_TOKEN"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeUnsupportedFile is used for uploads in a format the importer cannot read
	ErrCodeUnsupportedFile = "UNSUPPORTED_FILE"
)

// Availability error codes
const (
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
	// ErrCodeUnavailable is used when an optional backend (archive storage) is not configured
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Domain errors
	shared.CodeNotFound:                 http.StatusNotFound,
	shared.CodeDuplicateEntity:          http.StatusConflict,
	shared.CodeConcurrencyConflict:      http.StatusConflict,
	shared.CodeInvalidState:             http.StatusUnprocessableEntity,
	shared.CodeQuantityExceedsAvailable: http.StatusUnprocessableEntity,
	shared.CodeValidation:               http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Input errors
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnsupportedFile: http.StatusUnsupportedMediaType,

	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
