// Package schema applies dataset contracts: normalization, required
// field validation, semantic-tag coercion, and the orchestrated Apply
// sequence, all under a lineage trail.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ApplyErrorCode categorizes contract application failures.
type ApplyErrorCode string

const (
	// ErrCodeRequiredMissing means required canonical fields were
	// absent after normalization. Raised only in strict mode; lax
	// mode records the same fields as report warnings.
	ErrCodeRequiredMissing ApplyErrorCode = "REQUIRED_FIELD_MISSING"

	// ErrCodeFailOnNull means a fail_on_null field still held nulls
	// after coercion. Always fatal; the policy exists as a hard gate.
	ErrCodeFailOnNull ApplyErrorCode = "FAIL_ON_NULL"

	// ErrCodeBadFillConfig means a fill policy cannot apply to the
	// field's semantic tag (zero-fill on a non-numeric field).
	ErrCodeBadFillConfig ApplyErrorCode = "BAD_FILL_CONFIG"
)

// ApplyError is a structured failure during contract application.
// Every message carries dataset id and attempted version so audit
// logs are self-describing.
type ApplyError struct {
	Code      ApplyErrorCode
	Message   string
	DatasetID string
	Version   int
	// Fields lists the affected canonical field names.
	Fields []string
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	base := fmt.Sprintf("%s: %s (dataset=%s, version=%d)", e.Code, e.Message, e.DatasetID, e.Version)
	if len(e.Fields) > 0 {
		base += fmt.Sprintf(" fields=[%s]", strings.Join(e.Fields, ", "))
	}
	return base
}

// IsRequiredMissing reports whether err is a strict-mode required
// field failure. Uses errors.As to handle wrapped errors.
func IsRequiredMissing(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeRequiredMissing
	}
	return false
}

// IsFailOnNull reports whether err is a fail_on_null violation.
func IsFailOnNull(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeFailOnNull
	}
	return false
}

// NewRequiredMissingError builds the strict-mode validation failure.
func NewRequiredMissingError(datasetID string, version int, missing []string) *ApplyError {
	return &ApplyError{
		Code:      ErrCodeRequiredMissing,
		Message:   fmt.Sprintf("%d required field(s) missing after normalization", len(missing)),
		DatasetID: datasetID,
		Version:   version,
		Fields:    missing,
	}
}

// NewFailOnNullError builds the fill-policy hard-gate failure.
func NewFailOnNullError(datasetID string, version int, field string, nulls int) *ApplyError {
	return &ApplyError{
		Code:      ErrCodeFailOnNull,
		Message:   fmt.Sprintf("field %q holds %d null(s) after coercion", field, nulls),
		DatasetID: datasetID,
		Version:   version,
		Fields:    []string{field},
	}
}
