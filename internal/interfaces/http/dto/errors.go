package dto

import "net/http"

// Standardized error codes returned by the API
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"

	// ErrCodeValidation is used when a request fails field validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"

	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeSyncInProgress is used when another run holds the sync lock
	ErrCodeSyncInProgress = "ERR_SYNC_IN_PROGRESS"
	// ErrCodeJobActive is used when a scheduled job of the same kind is queued or running
	ErrCodeJobActive = "ERR_JOB_ACTIVE"

	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeSyncAborted is used when a run stopped on a fatal error
	ErrCodeSyncAborted = "ERR_SYNC_ABORTED"

	// ErrCodeUnavailable is used when an optional component is not running
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeNotFound: http.StatusNotFound,

	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeSyncInProgress:      http.StatusConflict,
	ErrCodeJobActive:           http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeSyncAborted:  http.StatusUnprocessableEntity,

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

// LegacyErrorCodeMapping maps domain error codes to API error codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"SYNC_IN_PROGRESS":     ErrCodeSyncInProgress,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
