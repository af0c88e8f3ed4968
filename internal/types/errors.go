package types

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeValidation               ErrorCode = "validation"
	CodeRoomNotFound             ErrorCode = "room_not_found"
	CodePermissionDenied         ErrorCode = "permission_denied"
	CodeResourceLimitExceeded    ErrorCode = "resource_limit_exceeded"
	CodeInsufficientParticipants ErrorCode = "insufficient_participants"
)

// Error is the application error surfaced to the UI as a transient
// notification. None of these are fatal to a running session.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: msg,
	}
}

func NewRoomNotFoundError(code string) *Error {
	return &Error{
		Code:    CodeRoomNotFound,
		Message: fmt.Sprintf("room %q not found or inactive", code),
	}
}

func NewPermissionDeniedError(err error) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: "media device access denied",
		Err:     err,
	}
}

func NewResourceLimitExceededError(name string, size int64) *Error {
	return &Error{
		Code:    CodeResourceLimitExceeded,
		Message: fmt.Sprintf("file %q is too large (%d bytes)", name, size),
	}
}

func NewInsufficientParticipantsError() *Error {
	return &Error{
		Code:    CodeInsufficientParticipants,
		Message: "need at least 2 participants for a call",
	}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not an
// application error.
func CodeOf(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
