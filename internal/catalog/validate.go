package catalog

import (
	"fmt"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// ValidateDatasetContract checks the structural invariants of a parsed
// dataset contract. Returns ALL defects found, never just the first:
// a contract with three alias collisions names every colliding pair.
func ValidateDatasetContract(c *contract.DatasetContract) []ValidationError {
	var errs []ValidationError

	if c.Version < 1 {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("version must be a positive integer, got %d", c.Version),
			Code:    ErrCodeBadVersion,
		})
	}

	if len(c.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "field",
			Message: "contract declares no fields",
			Code:    ErrCodeNoFields,
		})
	}

	fieldNames := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if fieldNames[f.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("field[%d]", i),
				Message: fmt.Sprintf("duplicate canonical field name %q", f.Name),
				Code:    ErrCodeDuplicateField,
			})
		}
		fieldNames[f.Name] = true

		if !contract.ValidDTypes[f.DType] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("field.%s.dtype", f.Name),
				Message: fmt.Sprintf("invalid dtype %q", f.DType),
				Code:    ErrCodeBadDType,
			})
		}
		if !contract.ValidSemanticTags[f.Semantic] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("field.%s.semantic", f.Name),
				Message: fmt.Sprintf("invalid semantic tag %q", f.Semantic),
				Code:    ErrCodeBadSemantic,
			})
		}
		if !contract.ValidFillPolicies[f.Fill] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("field.%s.fill_policy", f.Name),
				Message: fmt.Sprintf("invalid fill policy %q", f.Fill),
				Code:    ErrCodeBadFillPolicy,
			})
		}
	}

	errs = append(errs, validateAliasOwnership(c)...)

	for _, pk := range c.PrimaryKey {
		if !fieldNames[pk] {
			errs = append(errs, ValidationError{
				Field:   "primary_key",
				Message: fmt.Sprintf("primary key %q is not a declared field", pk),
				Code:    ErrCodeBadPrimaryKey,
			})
		}
	}

	return errs
}

// validateAliasOwnership enforces that every alias resolves to exactly
// one canonical field. A field listing its own canonical name as an
// alias is a harmless self-reference, not a collision. Every
// colliding pair is reported with both field names and the literal
// alias string.
func validateAliasOwnership(c *contract.DatasetContract) []ValidationError {
	var errs []ValidationError

	// owner maps each claimed name to the first field that claimed it.
	owner := make(map[string]string)

	claim := func(alias, field string) {
		prev, taken := owner[alias]
		if !taken {
			owner[alias] = field
			return
		}
		if prev == field {
			// Same field repeating itself (canonical name listed as
			// its own alias, or a duplicated alias entry).
			return
		}
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("field.%s.aliases", field),
			Message: fmt.Sprintf("alias %q already owned by field %q", alias, prev),
			Code:    ErrCodeAliasCollision,
		})
	}

	for _, f := range c.Fields {
		claim(f.Name, f.Name)
		for _, a := range f.Aliases {
			claim(a, f.Name)
		}
	}

	return errs
}

// ValidateThresholdContract checks the structural invariants of a
// parsed threshold contract, aggregating all defects.
func ValidateThresholdContract(c *contract.ThresholdContract) []ValidationError {
	var errs []ValidationError

	if c.Version < 1 {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("version must be a positive integer, got %d", c.Version),
			Code:    ErrCodeBadVersion,
		})
	}

	if len(c.Rules) == 0 {
		errs = append(errs, ValidationError{
			Field:   "rule",
			Message: "contract declares no rules",
			Code:    ErrCodeNoRules,
		})
	}

	for i, r := range c.Rules {
		if !contract.ValidThresholdTypes[r.Type] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rule[%d].type", i),
				Message: fmt.Sprintf("invalid threshold type %q", r.Type),
				Code:    ErrCodeBadThresholdType,
			})
		}
		if r.Value < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rule[%d].value", i),
				Message: fmt.Sprintf("value must be >= 0, got %v", r.Value),
				Code:    ErrCodeNegativeValue,
			})
		}
	}

	return errs
}
