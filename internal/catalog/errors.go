// Package catalog loads, validates, and caches versioned contracts
// from declarative CUE sources.
//
// Contracts are immutable once loaded: the registry hands out shared
// pointers and callers must treat them as read-only. Loading is
// idempotent and cache-keyed by (id, version); racing first-loads may
// both compute the value, either result may populate the cache, and
// both are equal.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
)

// Validation error codes (E100-E199). Structural errors at load time
// carry one of these so downstream tooling can classify failures
// without parsing messages.
const (
	ErrCodeGeneric = "E100" // unclassified load error

	// Dataset contract errors (E101-E109)
	ErrCodeMissingKey     = "E101" // required top-level key absent
	ErrCodeBadVersion     = "E102" // version label not a positive integer
	ErrCodeNoFields       = "E103" // contract declares no fields
	ErrCodeBadDType       = "E104" // invalid declared type
	ErrCodeBadSemantic    = "E105" // invalid semantic tag
	ErrCodeBadFillPolicy  = "E106" // invalid fill policy
	ErrCodeAliasCollision = "E107" // alias owned by two fields
	ErrCodeDuplicateField = "E108" // canonical name declared twice
	ErrCodeBadPrimaryKey  = "E109" // primary key not a declared field

	// Threshold contract errors (E110-E119)
	ErrCodeNoRules          = "E110" // contract declares no rules
	ErrCodeBadThresholdType = "E111" // invalid threshold type
	ErrCodeNegativeValue    = "E112" // rule value below zero
	ErrCodeBadEffectiveDate = "E113" // unparseable effective date
)

// ValidationError is one structural defect found in a contract source.
// Validation aggregates every defect before failing; a contract with
// three alias collisions reports all three.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// MalformedContractError is the fatal load-time error for a contract
// that parsed but failed structural validation. It carries every
// ValidationError found, never just the first.
type MalformedContractError struct {
	// Kind is "dataset" or "threshold".
	Kind string
	// ID is the dataset id or country code.
	ID      string
	Version int
	Defects []ValidationError
}

// Error lists every defect, prefixed with contract identity.
func (e *MalformedContractError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "malformed %s contract %q version %d: %d defect(s)", e.Kind, e.ID, e.Version, len(e.Defects))
	for _, d := range e.Defects {
		b.WriteString("\n  ")
		b.WriteString(d.Error())
	}
	return b.String()
}

// HasCode reports whether any defect carries the given code.
func (e *MalformedContractError) HasCode(code string) bool {
	for _, d := range e.Defects {
		if d.Code == code {
			return true
		}
	}
	return false
}

// IsMalformed reports whether err is (or wraps) a malformed-contract
// error.
func IsMalformed(err error) bool {
	var me *MalformedContractError
	return errors.As(err, &me)
}

// NotFoundError reports a contract the catalog does not carry.
// Fatal for dataset contracts; explicitly non-fatal for threshold
// contracts, where the resolver treats it as "advance the fallback
// chain".
type NotFoundError struct {
	Kind    string
	ID      string
	Version int // 0 when no version of the id exists at all
}

func (e *NotFoundError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s contract %q version %d not found in catalog", e.Kind, e.ID, e.Version)
	}
	return fmt.Sprintf("%s contract %q not found in catalog", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a contract-not-found
// error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// CompileError is a parse-time error with CUE source position.
// Code carries the E1xx class when the defect has one (missing key,
// bad effective date); errors surfaced by the CUE evaluator itself
// have no class and leave it empty.
type CompileError struct {
	Field   string
	Message string
	Code    string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Field, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return msg
}
