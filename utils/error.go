package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Business-rule failure kinds. Callers branch with errors.Is; every one of
// these aborts the enclosing transaction with no partial writes.
var (
	ErrorRecordNotFound         = errors.New("record not found")
	ErrorInsufficientStock      = errors.New("insufficient stock")
	ErrorInvalidStateTransition = errors.New("invalid state transition")
	ErrorAlreadyCancelled       = errors.New("order is already cancelled")
	ErrorDuplicateFieldKey      = errors.New("duplicate field key")
)

// FieldValidationError reports a single custom-field value that violates its
// definition.
type FieldValidationError struct {
	Field   string
	Message string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates per-field failures from one validation pass.
type ValidationErrors []*FieldValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
