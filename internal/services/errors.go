// Package services defines the business logic for direct messages,
// conversation views and the user directory projection. This file
// centralizes service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// Translation into user-facing messages, HTTP status codes or realtime
// `error` events is performed by the transport layers.
package services

import "errors"

// Validation errors.
var (
	// ErrMissingParticipant is returned when a message lacks a sender or a
	// receiver.
	ErrMissingParticipant = errors.New("sender and receiver are required")

	// ErrEmptyContent is returned when a message carries neither text, an
	// image nor a file.
	ErrEmptyContent = errors.New("message has no content")

	// ErrInvalidPage is returned for page numbers below 1.
	ErrInvalidPage = errors.New("page must be >= 1")
)

// Not-found errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrAnchorNotFound is returned when a transcript cursor does not name a
	// message of the requested conversation.
	ErrAnchorNotFound = errors.New("cursor message not found in conversation")

	// ErrUserNotFound indicates that the directory has no such user.
	ErrUserNotFound = errors.New("user not found")
)

// IsValidation reports whether err is caused by invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParticipant) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrInvalidPage)
}

// IsNotFound reports whether err denotes a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrAnchorNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
