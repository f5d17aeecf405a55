package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateError reports a unique-constraint violation mapped back to the
// profile field that caused it.
type DuplicateError struct {
	Field string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}
