// File: api/schemas/errors.go
package schemas

import "fmt"

// ErrorCode is a string type used for structured error reporting across the
// forge, sandbox, and orchestration boundaries. A custom type keeps callers
// from matching on arbitrary error strings.
type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeAuthUnconfigured ErrorCode = "AUTH_UNCONFIGURED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeUpstream         ErrorCode = "UPSTREAM"
)

// ForgeError wraps a lower-level transport or API error with the typed code
// the rest of the system branches on (degrade on NotFound, fast-fail on
// AuthUnconfigured/Unauthorized, surface the rest).
type ForgeError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *ForgeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *ForgeError) Unwrap() error { return e.Err }

// IsCode reports whether err is a *ForgeError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	fe, ok := err.(*ForgeError)
	if !ok {
		return false
	}
	return fe.Code == code
}

// NewForgeError is the canonical constructor used by forge callers.
func NewForgeError(op string, code ErrorCode, err error) *ForgeError {
	return &ForgeError{Code: code, Op: op, Err: err}
}
