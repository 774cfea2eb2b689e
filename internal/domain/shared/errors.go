package shared

import "errors"

// ErrorKind classifies a DomainError for callers and transport mapping.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindStateConflict ErrorKind = "STATE_CONFLICT"
	KindCapacity      ErrorKind = "CAPACITY"
	KindDuplicate     ErrorKind = "DUPLICATE"
	// KindIntegrity marks a broken invariant after a mutation. It is never a
	// user error and always requires operator attention.
	KindIntegrity ErrorKind = "INTEGRITY"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that errors.Is works against the
// predefined sentinels even when the message was customised.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Recoverable reports whether the caller may retry with corrected input.
func (e *DomainError) Recoverable() bool {
	return e.Kind != KindIntegrity
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a VALIDATION error
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewAuthorizationError creates an AUTHORIZATION error
func NewAuthorizationError(code, message string) *DomainError {
	return NewDomainError(KindAuthorization, code, message)
}

// NewStateConflictError creates a STATE_CONFLICT error
func NewStateConflictError(code, message string) *DomainError {
	return NewDomainError(KindStateConflict, code, message)
}

// NewCapacityError creates a CAPACITY error
func NewCapacityError(code, message string) *DomainError {
	return NewDomainError(KindCapacity, code, message)
}

// NewIntegrityError creates an INTEGRITY error
func NewIntegrityError(code, message string) *DomainError {
	return NewDomainError(KindIntegrity, code, message)
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrDuplicate           = NewDomainError(KindDuplicate, "DUPLICATE", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewStateConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewAuthorizationError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewAuthorizationError("FORBIDDEN", "Access to this resource is forbidden")
	ErrAccountInactive     = NewAuthorizationError("ACCOUNT_INACTIVE", "Account is not active")
	ErrInvalidTransition   = NewStateConflictError("INVALID_TRANSITION", "Operation not allowed in current state")
	ErrInsufficientStock   = NewCapacityError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrInvariantViolation  = NewIntegrityError("INVARIANT_VIOLATION", "Internal integrity check failed")
)

// KindOf returns the kind of a domain error anywhere in err's chain, or the
// empty kind when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
