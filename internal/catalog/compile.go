package catalog

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// CompileDatasetContract parses a CUE value into a DatasetContract.
// The value is the versioned contract body, e.g. the struct at
// contract.ar_open_items."3" in:
//
//	contract: ar_open_items: "3": {
//		description: "AR open items extract"
//		field: customer_id: {required: true, dtype: "string", ...}
//	}
//
// Field declaration order in the source is preserved: it drives the
// normalizer's alias search order. Missing required keys fail here;
// enum and collision checks are aggregated later by Validate.
func CompileDatasetContract(id string, version int, v cue.Value) (*contract.DatasetContract, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &contract.DatasetContract{ID: id, Version: version}

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Description = desc
	}

	if depVal := v.LookupPath(cue.ParsePath("deprecated")); depVal.Exists() {
		dep, err := depVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Deprecated = dep
	}

	pk, err := stringList(v.LookupPath(cue.ParsePath("primary_key")))
	if err != nil {
		return nil, err
	}
	c.PrimaryKey = pk

	fieldsVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "field",
			Message: "at least one field declaration is required",
			Code:    ErrCodeMissingKey,
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, *f)
	}
	if len(c.Fields) == 0 {
		return nil, &CompileError{
			Field:   "field",
			Message: "at least one field declaration is required",
			Code:    ErrCodeMissingKey,
			Pos:     fieldsVal.Pos(),
		}
	}

	return c, nil
}

// compileField parses one field declaration.
func compileField(name string, v cue.Value) (*contract.FieldContract, error) {
	f := &contract.FieldContract{
		Name:     name,
		Semantic: contract.TagOther,
		Fill:     contract.FillKeepNull,
	}

	dtypeVal := v.LookupPath(cue.ParsePath("dtype"))
	if !dtypeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("field.%s.dtype", name),
			Message: "dtype is required",
			Code:    ErrCodeMissingKey,
			Pos:     v.Pos(),
		}
	}
	dtype, err := dtypeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	f.DType = contract.DType(dtype)

	if reqVal := v.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
		req, err := reqVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Required = req
	}

	aliases, err := stringList(v.LookupPath(cue.ParsePath("aliases")))
	if err != nil {
		return nil, err
	}
	f.Aliases = aliases

	if semVal := v.LookupPath(cue.ParsePath("semantic")); semVal.Exists() {
		sem, err := semVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Semantic = contract.SemanticTag(sem)
	}

	if fillVal := v.LookupPath(cue.ParsePath("fill_policy")); fillVal.Exists() {
		fill, err := fillVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Fill = contract.FillPolicy(fill)
	}

	if critVal := v.LookupPath(cue.ParsePath("critical")); critVal.Exists() {
		crit, err := critVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Critical = crit
	}

	if scVal := v.LookupPath(cue.ParsePath("strip_currency")); scVal.Exists() {
		sc, err := scVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Coercion.StripCurrency = sc
	}

	if sgVal := v.LookupPath(cue.ParsePath("strip_grouping")); sgVal.Exists() {
		sg, err := sgVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Coercion.StripGrouping = sg
	}

	formats, err := stringList(v.LookupPath(cue.ParsePath("date_formats")))
	if err != nil {
		return nil, err
	}
	f.Coercion.DateFormats = formats

	rules, err := stringList(v.LookupPath(cue.ParsePath("rules")))
	if err != nil {
		return nil, err
	}
	f.Rules = rules

	return f, nil
}

// CompileThresholdContract parses a CUE value into a ThresholdContract.
// The value is the versioned body at threshold.<country>."<version>".
func CompileThresholdContract(country string, version int, v cue.Value) (*contract.ThresholdContract, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &contract.ThresholdContract{Country: country, Version: version}

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Description = desc
	}

	if edVal := v.LookupPath(cue.ParsePath("effective_date")); edVal.Exists() {
		raw, err := edVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, &CompileError{
				Field:   "effective_date",
				Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", raw),
				Code:    ErrCodeBadEffectiveDate,
				Pos:     edVal.Pos(),
			}
		}
		c.EffectiveDate = ed
	}

	rulesVal := v.LookupPath(cue.ParsePath("rule"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Field:   "rule",
			Message: "at least one rule is required",
			Code:    ErrCodeMissingKey,
			Pos:     v.Pos(),
		}
	}

	ruleIter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for ruleIter.Next() {
		r, err := compileRule(len(c.Rules), ruleIter.Value())
		if err != nil {
			return nil, err
		}
		c.Rules = append(c.Rules, *r)
	}
	if len(c.Rules) == 0 {
		return nil, &CompileError{
			Field:   "rule",
			Message: "at least one rule is required",
			Code:    ErrCodeMissingKey,
			Pos:     rulesVal.Pos(),
		}
	}

	return c, nil
}

// compileRule parses one threshold rule entry.
func compileRule(index int, v cue.Value) (*contract.ThresholdRule, error) {
	r := &contract.ThresholdRule{}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("rule[%d].type", index),
			Message: "type is required",
			Code:    ErrCodeMissingKey,
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	r.Type = contract.ThresholdType(typ)

	valVal := v.LookupPath(cue.ParsePath("value"))
	if !valVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("rule[%d].value", index),
			Message: "value is required",
			Code:    ErrCodeMissingKey,
			Pos:     v.Pos(),
		}
	}
	val, err := valVal.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	r.Value = val

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r.Description = desc
	}

	gl, err := stringList(v.LookupPath(cue.ParsePath("gl_accounts")))
	if err != nil {
		return nil, err
	}
	r.Scope.GLAccounts = gl

	cats, err := stringList(v.LookupPath(cue.ParsePath("categories")))
	if err != nil {
		return nil, err
	}
	r.Scope.Categories = cats

	vts, err := stringList(v.LookupPath(cue.ParsePath("voucher_types")))
	if err != nil {
		return nil, err
	}
	r.Scope.VoucherTypes = vts

	return r, nil
}

// stringList reads an optional list of strings. A missing value
// yields nil.
func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
