package api

import (
	"errors"
	"fmt"
)

// errForbidden rejects a request with no body leakage; handlers translate it
// to a bare 403.
var errForbidden = errors.New("forbidden")

// ValidationError identifies the offending profile field and a human-readable
// reason, rendered as a structured 400 body.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
