package dto

import (
	"errors"
	"net/http"

	"github.com/wholesale/backend/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep their own codes
// (PRICE_TOO_LOW, INSUFFICIENT_QUANTITY, ...) and are mapped by kind.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON         = "ERR_INVALID_JSON"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodePayloadTooLarge     = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps transport codes and the domain codes that do not
// follow their kind's status
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidJSON:         http.StatusBadRequest,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodePayloadTooLarge:     http.StatusRequestEntityTooLarge,

	"PRICE_TOO_LOW": http.StatusUnprocessableEntity,
}

// KindHTTPStatus maps each domain error kind to its status
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:    http.StatusBadRequest,
	shared.KindAuthorization: http.StatusForbidden,
	shared.KindNotFound:      http.StatusNotFound,
	shared.KindStateConflict: http.StatusConflict,
	shared.KindDuplicate:     http.StatusConflict,
	shared.KindCapacity:      http.StatusUnprocessableEntity,
	shared.KindIntegrity:     http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for a transport error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping folds the generic domain codes into the transport
// vocabulary
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a generic domain code to the transport format.
// Specific domain codes pass through unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// ResolveError turns any error into the status, code and message sent to the
// client. Integrity failures and unknown errors never expose their message.
func ResolveError(err error) (int, string, string) {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred"
	}
	if domainErr.Kind == shared.KindIntegrity {
		return http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred"
	}
	code := NormalizeErrorCode(domainErr.Code)
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status, code, domainErr.Message
	}
	if status, ok := KindHTTPStatus[domainErr.Kind]; ok {
		return status, code, domainErr.Message
	}
	return http.StatusInternalServerError, code, domainErr.Message
}
