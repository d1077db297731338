// Package common defines shared constants and sentinel errors used across
// CipherChat components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/storage-level errors.
	ErrNotFound  = errors.New("not found")
	ErrStorageIO = errors.New("storage i/o failure")

	// Authorization errors: edit is sender-only, delete is
	// conversation-membership.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidPath is returned when a caller-supplied path escapes the
	// storage root or is otherwise unusable.
	ErrInvalidPath = errors.New("invalid path")

	// ErrProvisioningFailed covers conversation setup that could not be
	// completed and was compensated.
	ErrProvisioningFailed = errors.New("conversation provisioning failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
