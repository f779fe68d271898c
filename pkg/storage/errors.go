package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCollision if an item already exists within the datastore.
	ErrCollision = errors.New("item already exists")

	// ErrInvalidReference if a write points at a row that does not exist.
	ErrInvalidReference = errors.New("referenced item does not exist")

	ErrInvalidContinuationToken = errors.New("invalid continuation token")

	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	ErrNotFound = errors.New("not found")

	// ErrLastOwner if a member write would leave a family without an owner.
	ErrLastOwner = errors.New("a family must keep at least one owner")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidField builds a ValidationError for field.
func InvalidField(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
