// Package common defines sentinel errors and typed failures shared by the
// repositories and services of calbot. Callers should use errors.Is / errors.As
// to match these values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrPoolExhausted   = errors.New("connection pool exhausted")

	// Service-level errors.
	ErrorValidation         = errors.New("validation error")
	ErrorAlreadyExists      = errors.New("already exists")
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorNotFoundOrNotOwned = errors.New("not found or not owned")
	ErrorStorageUnavailable = errors.New("storage unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError captures field level validation issues. It matches
// ErrorValidation via errors.Is.
type ValidationError struct {
	FieldErrors map[string]string
}

// NewValidationError returns a ValidationError with a single field issue.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrorValidation.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return fmt.Sprintf("%s: %s", ErrorValidation, strings.Join(parts, "; "))
}

func (v *ValidationError) Is(target error) bool { return target == ErrorValidation }

// Add records a field level issue. The first message recorded for a field wins.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, ok := v.FieldErrors[field]; !ok {
		v.FieldErrors[field] = message
	}
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// OrNil returns v as an error when issues were recorded, nil otherwise.
func (v *ValidationError) OrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// StorageError wraps a pool, connection, timeout or query failure. Its message
// is opaque; the cause is reachable through errors.Is / errors.As and through
// Describe in diagnostic mode.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string { return ErrorStorageUnavailable.Error() }

func (e *StorageError) Unwrap() []error { return []error{ErrorStorageUnavailable, e.Err} }

// Describe renders err for an outer layer. Outside diagnostic mode storage
// failures collapse to "storage unavailable"; in diagnostic mode the operation
// and cause are included.
func Describe(err error, diagnostic bool) string {
	if err == nil {
		return ""
	}
	var se *StorageError
	if errors.As(err, &se) {
		if diagnostic {
			return fmt.Sprintf("%s: %s: %v", ErrorStorageUnavailable, se.Op, se.Err)
		}
		return ErrorStorageUnavailable.Error()
	}
	return err.Error()
}
