package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a state conflict such as a duplicate key or a vote membership clash.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates business rule validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrIntegrity indicates a transaction was rolled back because it could
	// not keep quotes and their upvotes consistent.
	ErrIntegrity = errors.New("integrity violation")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")
)

// Conflict and availability kinds. Each is reachable through errors.Is()
// alongside its category sentinel.
var (
	// ErrDuplicateKey indicates a quote name is already taken.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrAlreadyVoted indicates the user already upvoted the quote.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrNotVoted indicates the user has no upvote on the quote.
	ErrNotVoted = errors.New("not voted")

	// ErrExternalPublish indicates the leaderboard artifact could not be updated.
	ErrExternalPublish = errors.New("external publish failed")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError provides context for conflict errors.
type ConflictError struct {
	Entity  string
	Kind    error
	Details string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	reason := "conflict"
	if e.Kind != nil {
		reason = e.Kind.Error()
	}

	if e.Details != "" {
		return fmt.Sprintf("%s conflict: %s (%s)", e.Entity, reason, e.Details)
	}

	return fmt.Sprintf("%s conflict: %s", e.Entity, reason)
}

// Unwrap returns the category sentinel and, when set, the kind.
func (e *ConflictError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrConflict}
	}

	return []error{ErrConflict, e.Kind}
}

// NewDuplicateKeyError reports that name is already used by another quote.
func NewDuplicateKeyError(name string) error {
	return &ConflictError{Entity: "quote", Kind: ErrDuplicateKey, Details: name}
}

// NewAlreadyVotedError reports a repeated upvote by the same user.
func NewAlreadyVotedError(userID, quoteName string) error {
	return &ConflictError{
		Entity:  "upvote",
		Kind:    ErrAlreadyVoted,
		Details: fmt.Sprintf("user %s on %q", userID, quoteName),
	}
}

// NewNotVotedError reports a missing upvote for the user.
func NewNotVotedError(userID, quoteName string) error {
	return &ConflictError{
		Entity:  "upvote",
		Kind:    ErrNotVoted,
		Details: fmt.Sprintf("user %s on %q", userID, quoteName),
	}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// IntegrityError describes a rolled back quote/upvote transaction.
type IntegrityError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s rolled back: %v", e.Operation, e.Cause)
	}

	return e.Operation + " rolled back"
}

// Unwrap returns the sentinel and the underlying cause.
func (e *IntegrityError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrIntegrity}
	}

	return []error{ErrIntegrity, e.Cause}
}

// NewIntegrityError wraps a storage failure that forced a rollback.
func NewIntegrityError(operation string, cause error) error {
	return &IntegrityError{Operation: operation, Cause: cause}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
	Kind    error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the category sentinel and, when set, the kind.
func (e *UnavailableError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrUnavailable}
	}

	return []error{ErrUnavailable, e.Kind}
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// NewExternalPublishError reports a failed leaderboard publish.
func NewExternalPublishError(service string, cause error) error {
	e := &UnavailableError{Service: service, Kind: ErrExternalPublish}
	if cause != nil {
		e.Reason = cause.Error()
	}

	return e
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsIntegrity checks if an error is an integrity violation.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
