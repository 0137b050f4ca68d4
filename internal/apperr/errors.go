package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the acting user's stored permission record does
	// not grant the attempted operation. No write is performed.
	ErrUnauthorized = errors.New("insufficient permission")

	// ErrNotFound means a referenced ticket, client or user no longer exists.
	ErrNotFound = errors.New("record missing")

	// ErrNoChanges is returned when an update derives zero history entries;
	// the caller should skip the write and report "no changes".
	ErrNoChanges = errors.New("no changes")

	// ErrDuplicateIdentifier means the scanned tag/code is already assigned
	// to a ticket in the organization.
	ErrDuplicateIdentifier = errors.New("identifier already assigned")

	// ErrDuplicateEmail means a user with this email already exists.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrSelfDelete blocks a user from deleting their own account.
	ErrSelfDelete = errors.New("cannot delete own account")

	// ErrScanInProgress rejects a scan resolution while a prior one for the
	// same device session is still outstanding.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrTipsUnavailable is the soft failure of the diagnostic-tip generator.
	ErrTipsUnavailable = errors.New("diagnostic tips unavailable")
)

// ValidationError rejects a request before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError wraps a transport or commit failure from the backing store.
// The atomic-commit property guarantees no partial write happened.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError unless it already carries an
// application meaning (not found, conflict, config).
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateIdentifier) ||
		errors.Is(err, ErrDuplicateEmail) {
		return err
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// ConfigError signals a missing backend prerequisite (a required index,
// for example). Operators need to distinguish it from transient store
// failures, so it is its own type.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config builds a ConfigError.
func Config(reason string, err error) error {
	return &ConfigError{Reason: reason, Err: err}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
