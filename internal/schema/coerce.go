package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// nullMarkers are string spellings that mean "missing" in ERP extracts.
// Compared case-sensitively except for the trimmed-empty case; these
// are the literal artifacts pandas-era exports leave behind.
var nullMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"NAN":  true,
	"None": true,
	"null": true,
	"NULL": true,
	"N/A":  true,
	"n/a":  true,
}

// CoerceResult reports what one column coercion did.
type CoerceResult struct {
	// Invalid counts cells that failed to parse and became null.
	// Empty and null-marker cells are NOT invalid; absence is an
	// expected state, corruption is not.
	Invalid int
	// Filled counts nulls replaced by the fill policy.
	Filled int
	// Nulls counts nulls remaining AFTER the fill policy ran.
	Nulls int
	// Changed counts cells whose value differs after coercion,
	// before the fill policy ran. Zero on already-coerced input,
	// which keeps re-application from recording spurious events.
	Changed int
}

// CoerceColumn coerces a column's raw values according to the field's
// semantic tag, then applies the fill policy exactly once on the
// post-coercion null set. The input slice is rewritten in place.
//
// The semantic tag, not the declared dtype, drives cleaning: an amount
// gets currency and grouping stripped, a date walks the format list,
// an id is trimmed and de-sentineled. Unparseable cells become null
// and count as invalid; the pipeline never aborts mid-column.
func CoerceColumn(values []contract.Value, field *contract.FieldContract) (CoerceResult, error) {
	var res CoerceResult

	for i, v := range values {
		coerced, ok := coerceCell(v, field)
		if !ok {
			res.Invalid++
			coerced = contract.Null{}
		}
		if coerced != v {
			res.Changed++
		}
		values[i] = coerced
	}

	filled, err := applyFill(values, field)
	if err != nil {
		return res, err
	}
	res.Filled = filled

	for _, v := range values {
		if contract.IsNull(v) {
			res.Nulls++
		}
	}
	return res, nil
}

// coerceCell coerces one cell. The second return is false only for
// invalid (unparseable) input; nulls and null markers return (Null,
// true).
func coerceCell(v contract.Value, field *contract.FieldContract) (contract.Value, bool) {
	if contract.IsNull(v) {
		return contract.Null{}, true
	}

	switch field.Semantic {
	case contract.TagAmount, contract.TagRate:
		return coerceNumeric(v, field.Coercion)
	case contract.TagCount:
		return coerceCount(v)
	case contract.TagDate:
		return coerceDate(v, field.Coercion.DateFormats)
	case contract.TagID, contract.TagKey, contract.TagCode:
		return coerceIdentifier(v)
	case contract.TagFlag:
		return coerceFlag(v)
	default:
		// name, other: stringify, preserving the value as seen.
		return contract.String(contract.ValueString(v)), true
	}
}

// coerceNumeric parses amounts and rates into Float. Currency symbols
// and grouping separators are stripped only when the field's flags say
// so; a contract that never sees formatted input keeps strict parsing.
func coerceNumeric(v contract.Value, flags contract.CoercionFlags) (contract.Value, bool) {
	switch val := v.(type) {
	case contract.Float:
		return val, true
	case contract.Int:
		return contract.Float(float64(val)), true
	case contract.Bool:
		return contract.Null{}, false
	}

	s := strings.TrimSpace(string(v.(contract.String)))
	if nullMarkers[s] {
		return contract.Null{}, true
	}

	// Accounting negatives: "(1,234.56)" means -1234.56.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	if flags.StripCurrency {
		s = stripCurrency(s)
	}
	if flags.StripGrouping {
		s = stripGrouping(s)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return contract.Null{}, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return contract.Null{}, false
	}
	if negative {
		f = -f
	}
	return contract.Float(f), true
}

// coerceCount parses integer counts. A float-shaped string is accepted
// when integral ("3.0" counts things too in exported extracts).
func coerceCount(v contract.Value) (contract.Value, bool) {
	switch val := v.(type) {
	case contract.Int:
		return val, true
	case contract.Float:
		if val == contract.Float(int64(val)) {
			return contract.Int(int64(val)), true
		}
		return contract.Null{}, false
	case contract.Bool:
		return contract.Null{}, false
	}

	s := strings.TrimSpace(string(v.(contract.String)))
	if nullMarkers[s] {
		return contract.Null{}, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return contract.Int(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return contract.Int(int64(f)), true
	}
	return contract.Null{}, false
}

// coerceDate walks the field's format list in declared order; the
// first successful parse wins and the cell is normalized to ISO 8601.
func coerceDate(v contract.Value, formats []string) (contract.Value, bool) {
	s := strings.TrimSpace(contract.ValueString(v))
	if nullMarkers[s] {
		return contract.Null{}, true
	}
	if len(formats) == 0 {
		formats = contract.DefaultDateFormats
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return contract.String(t.Format("2006-01-02")), true
		}
	}
	return contract.Null{}, false
}

// coerceIdentifier trims and de-sentinels ids, keys, and codes.
// Numeric input is stringified so "18412" and 18412 reconcile.
func coerceIdentifier(v contract.Value) (contract.Value, bool) {
	s := strings.TrimSpace(contract.ValueString(v))
	if nullMarkers[s] {
		return contract.Null{}, true
	}
	return contract.String(s), true
}

// coerceFlag parses booleans from the spellings export tools produce.
func coerceFlag(v contract.Value) (contract.Value, bool) {
	switch val := v.(type) {
	case contract.Bool:
		return val, true
	case contract.Int:
		switch val {
		case 0:
			return contract.Bool(false), true
		case 1:
			return contract.Bool(true), true
		}
		return contract.Null{}, false
	case contract.Float:
		switch val {
		case 0:
			return contract.Bool(false), true
		case 1:
			return contract.Bool(true), true
		}
		return contract.Null{}, false
	}

	s := strings.TrimSpace(string(v.(contract.String)))
	if nullMarkers[s] {
		return contract.Null{}, true
	}
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return contract.Bool(true), true
	case "false", "f", "no", "n", "0":
		return contract.Bool(false), true
	}
	return contract.Null{}, false
}

// applyFill replaces or rejects post-coercion nulls per the field's
// policy. fail_on_null is checked by the orchestrator via the Nulls
// counter, not here, so the whole column's null count reaches the
// error message.
func applyFill(values []contract.Value, field *contract.FieldContract) (int, error) {
	switch field.Fill {
	case contract.FillKeepNull, contract.FillFailOnNull, "":
		return 0, nil
	case contract.FillZero:
		if !numericTag(field.Semantic) {
			return 0, &ApplyError{
				Code:    ErrCodeBadFillConfig,
				Message: "fill_zero requires a numeric semantic tag, got " + string(field.Semantic),
				Fields:  []string{field.Name},
			}
		}
		filled := 0
		for i, v := range values {
			if contract.IsNull(v) {
				if field.Semantic == contract.TagCount {
					values[i] = contract.Int(0)
				} else {
					values[i] = contract.Float(0)
				}
				filled++
			}
		}
		return filled, nil
	case contract.FillEmpty:
		filled := 0
		for i, v := range values {
			if contract.IsNull(v) {
				values[i] = contract.String("")
				filled++
			}
		}
		return filled, nil
	default:
		return 0, &ApplyError{
			Code:    ErrCodeBadFillConfig,
			Message: "unknown fill policy " + string(field.Fill),
			Fields:  []string{field.Name},
		}
	}
}

func numericTag(tag contract.SemanticTag) bool {
	return tag == contract.TagAmount || tag == contract.TagRate || tag == contract.TagCount
}

// stripCurrency removes currency symbols and ISO currency codes glued
// to a numeric string.
func stripCurrency(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', '₹', '¤':
			return -1
		}
		return r
	}, s)
	// Alphabetic prefixes/suffixes like "EGP 1,200" or "1200 USD".
	s = strings.TrimSpace(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})
	return s
}

// stripGrouping removes thousands separators: commas, apostrophes, and
// spaces (including the non-breaking space Excel emits).
func stripGrouping(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '\'', ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
}
