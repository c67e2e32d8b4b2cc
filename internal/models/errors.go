package models

import (
	"errors"
	"fmt"

	"tariff-service/shared/utils"
)

var (
	// ErrMalformedInput marks invalid JSON, dates or out-of-range field values.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotFound marks a missing tariff group, tariff entry or rate.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks constraint violations, connectivity loss and failed transactions.
	ErrStorage = errors.New("storage error")
)

// FieldsError reports the request fields that failed validation. It matches
// ErrMalformedInput.
type FieldsError struct {
	Subject string
	Fields  []utils.ValidationError
}

func NewFieldsError(subject string, fields []utils.ValidationError) *FieldsError {
	return &FieldsError{Subject: subject, Fields: fields}
}

func (e *FieldsError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedInput, e.Subject, utils.JoinValidationErrors(e.Fields))
}

func (e *FieldsError) Unwrap() error { return ErrMalformedInput }
