package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
)

// Check-in rejections. Each pipeline stage reports its own code.
var (
	ErrMissingFields     = New("MISSING_FIELDS", http.StatusBadRequest, "missing required fields")
	ErrQRNotEnabled      = New("QR_NOT_ENABLED", http.StatusBadRequest, "QR check-in is not enabled for this session")
	ErrInvalidQRToken    = New("INVALID_QR_TOKEN", http.StatusBadRequest, "QR token is invalid")
	ErrQRTokenExpired    = New("QR_TOKEN_EXPIRED", http.StatusBadRequest, "QR token has expired")
	ErrOutsideWindow     = New("OUTSIDE_ATTENDANCE_WINDOW", http.StatusBadRequest, "check-in is outside the attendance window")
	ErrAlreadyCheckedIn  = New("ALREADY_CHECKED_IN", http.StatusBadRequest, "attendance already recorded for this session")
	ErrSessionNotFound   = New("NOT_FOUND", http.StatusNotFound, "session not found")
	ErrInvalidTimeWindow = New("INVALID_TIME_RANGE", http.StatusBadRequest, "startTime must be before endTime")
)

// Device binding workflow errors.
var (
	ErrDeviceRequestPending  = New("DEVICE_REQUEST_PENDING", http.StatusBadRequest, "a device change request is already pending")
	ErrRequestAlreadyHandled = New("REQUEST_ALREADY_PROCESSED", http.StatusBadRequest, "request has already been processed")
	ErrDeviceApprovalPending = New("DEVICE_APPROVAL_PENDING", http.StatusForbidden, "device change request is awaiting instructor approval")
	ErrDeviceMismatch        = New("DEVICE_MISMATCH", http.StatusForbidden, "account is registered on another device, submit a device change request")
	ErrStudentNotFound       = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrDeviceRequestNotFound = New("DEVICE_REQUEST_NOT_FOUND", http.StatusNotFound, "device request not found")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]interface{}, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetails returns a copy of err carrying the provided details.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
