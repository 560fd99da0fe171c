//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package planning

import (
	"errors"
	"fmt"
)

// Code classifies a coordination failure. The set is closed; transports map
// codes to their own status space without inspecting messages.
type Code string

const (
	// CodeNotFound means the referenced session or resource does not exist.
	CodeNotFound Code = "not_found"
	// CodeValidation means the input failed a validation rule.
	CodeValidation Code = "validation"
	// CodeDuplicate means the write conflicts with an existing record.
	CodeDuplicate Code = "duplicate"
	// CodeExpired means the invite token has expired.
	CodeExpired Code = "expired"
	// CodeRevoked means the invite token has been revoked.
	CodeRevoked Code = "revoked"
	// CodeFinalized means the session no longer accepts this operation.
	CodeFinalized Code = "finalized"
	// CodeNotOrganizer means the requester lacks organizer privileges.
	CodeNotOrganizer Code = "not_organizer"
	// CodeVenueNotFound means the venue is not part of the session.
	CodeVenueNotFound Code = "venue_not_found"
	// CodeItemNotFound means the itinerary item does not exist.
	CodeItemNotFound Code = "item_not_found"
	// CodeTooLong means a text field exceeds its limit.
	CodeTooLong Code = "too_long"
	// CodeStorageFailure means the backing store failed.
	CodeStorageFailure Code = "storage_failure"
	// CodeInternal means an invariant was violated inside the core.
	CodeInternal Code = "internal"
)

// Error is the coordination error carried across package boundaries. It
// pairs a Code with a human-readable message and optional structured
// details, and may wrap an underlying cause.
type Error struct {
	// Code classifies the failure.
	Code Code `json:"code"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Details carries optional structured context such as field limits.
	Details map[string]any `json:"details,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches a structured detail and returns the error for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError creates an error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an error with the given code and a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an error with the given code and message that wraps
// cause. Use it to surface driver failures as CodeStorageFailure without
// losing the original error.
func WrapError(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the Code from err. Errors produced outside this package
// report CodeInternal; a nil error reports an empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
