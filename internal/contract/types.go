package contract

import (
	"fmt"
	"time"
)

// DefaultCountry is the sentinel country code for the shared fallback
// threshold catalog. A query that finds no rule in its own country's
// contract is retried against this one before the hardcoded constants.
const DefaultCountry = "DEFAULT"

// SemanticTag classifies a field's meaning for coercion purposes.
// The tag, not the declared dtype, drives how raw values are cleaned.
type SemanticTag string

const (
	TagAmount SemanticTag = "amount"
	TagDate   SemanticTag = "date"
	TagID     SemanticTag = "id"
	TagKey    SemanticTag = "key"
	TagCode   SemanticTag = "code"
	TagName   SemanticTag = "name"
	TagFlag   SemanticTag = "flag"
	TagCount  SemanticTag = "count"
	TagRate   SemanticTag = "rate"
	TagOther  SemanticTag = "other"
)

// ValidSemanticTags enumerates every accepted semantic tag.
var ValidSemanticTags = map[SemanticTag]bool{
	TagAmount: true,
	TagDate:   true,
	TagID:     true,
	TagKey:    true,
	TagCode:   true,
	TagName:   true,
	TagFlag:   true,
	TagCount:  true,
	TagRate:   true,
	TagOther:  true,
}

// ValidateSemanticTag checks tag membership. Empty defaults to "other".
func ValidateSemanticTag(tag string) error {
	if tag == "" {
		return nil
	}
	if !ValidSemanticTags[SemanticTag(tag)] {
		return fmt.Errorf("invalid semantic tag %q", tag)
	}
	return nil
}

// FillPolicy controls what happens to nulls AFTER coercion.
// Applied exactly once, on the post-coercion null set.
type FillPolicy string

const (
	// FillKeepNull leaves nulls in place (default).
	FillKeepNull FillPolicy = "keep_null"
	// FillZero replaces nulls with 0.0. Numeric tags only.
	FillZero FillPolicy = "fill_zero"
	// FillEmpty replaces nulls with the empty string.
	FillEmpty FillPolicy = "fill_empty"
	// FillFailOnNull raises if any null survives coercion. Hard gate
	// for criticality-flagged reconciliation keys.
	FillFailOnNull FillPolicy = "fail_on_null"
)

// ValidFillPolicies enumerates every accepted fill policy.
var ValidFillPolicies = map[FillPolicy]bool{
	FillKeepNull:   true,
	FillZero:       true,
	FillEmpty:      true,
	FillFailOnNull: true,
}

// ValidateFillPolicy checks policy membership. Empty defaults to keep_null.
func ValidateFillPolicy(policy string) error {
	if policy == "" {
		return nil
	}
	if !ValidFillPolicies[FillPolicy(policy)] {
		return fmt.Errorf("invalid fill policy %q", policy)
	}
	return nil
}

// DType is the declared storage type of a canonical field.
type DType string

const (
	DTypeString DType = "string"
	DTypeFloat  DType = "float"
	DTypeInt    DType = "int"
	DTypeBool   DType = "bool"
	DTypeDate   DType = "date"
)

// ValidDTypes enumerates every accepted declared type.
var ValidDTypes = map[DType]bool{
	DTypeString: true,
	DTypeFloat:  true,
	DTypeInt:    true,
	DTypeBool:   true,
	DTypeDate:   true,
}

// CoercionFlags are the per-field knobs consulted by the coercer.
type CoercionFlags struct {
	// StripCurrency removes currency symbols before numeric parsing.
	StripCurrency bool `json:"strip_currency"`
	// StripGrouping removes thousands separators and spaces before
	// numeric parsing.
	StripGrouping bool `json:"strip_grouping"`
	// DateFormats are tried in declared order; first parse wins.
	DateFormats []string `json:"date_formats,omitempty"`
}

// DefaultDateFormats are used when a date field declares none.
// ISO first, then the day-first forms common in ERP extracts.
var DefaultDateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

// FieldContract declares one canonical field of a dataset contract.
//
// Aliases are searched in declared order during normalization; the
// canonical name itself is always the first candidate. A field may
// repeat its own canonical name in Aliases (harmless self-reference),
// but no alias may appear under two different fields of the same
// contract.
type FieldContract struct {
	Name     string        `json:"name"`
	Required bool          `json:"required"`
	Aliases  []string      `json:"aliases,omitempty"`
	DType    DType         `json:"dtype"`
	Semantic SemanticTag   `json:"semantic"`
	Coercion CoercionFlags `json:"coercion"`
	Fill     FillPolicy    `json:"fill_policy"`
	// Critical marks fields whose corruption invalidates the audit
	// package. Surfaced in reports; enforcement is the caller's.
	Critical bool `json:"critical,omitempty"`
	// Rules are free-form validation annotations carried through to
	// the report for the downstream evidence layer.
	Rules []string `json:"rules,omitempty"`
}

// Candidates returns the ordered rename candidate list for this field:
// the canonical name first, then the aliases in declared order.
func (f *FieldContract) Candidates() []string {
	out := make([]string, 0, len(f.Aliases)+1)
	out = append(out, f.Name)
	out = append(out, f.Aliases...)
	return out
}

// DatasetContract is an immutable, versioned schema contract.
//
// Field order is load-bearing: normalization consumes dataset columns
// in field declaration order, so two contracts with the same fields in
// a different order are NOT equivalent.
type DatasetContract struct {
	ID          string          `json:"id"`
	Version     int             `json:"version"`
	Description string          `json:"description,omitempty"`
	Fields      []FieldContract `json:"fields"`
	PrimaryKey  []string        `json:"primary_key,omitempty"`
	Deprecated  bool            `json:"deprecated,omitempty"`
	// Hash is the content hash of the canonicalized contract,
	// computed once at load time.
	Hash string `json:"hash"`
}

// Field returns the field declared under the given canonical name.
func (c *DatasetContract) Field(name string) (*FieldContract, bool) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// ThresholdType identifies which tolerance a rule provides.
type ThresholdType string

const (
	// ThresholdBucketAggregate bounds the USD total of an aging
	// bucket before its vouchers require item-level review.
	ThresholdBucketAggregate ThresholdType = "bucket_aggregate"
	// ThresholdLineItem bounds a single open item's value.
	ThresholdLineItem ThresholdType = "line_item"
	// ThresholdCountryMateriality is the country-level materiality
	// floor for the whole ledger extract.
	ThresholdCountryMateriality ThresholdType = "country_materiality"
)

// ValidThresholdTypes enumerates every accepted threshold type.
var ValidThresholdTypes = map[ThresholdType]bool{
	ThresholdBucketAggregate:    true,
	ThresholdLineItem:           true,
	ThresholdCountryMateriality: true,
}

// ValidateThresholdType checks type membership.
func ValidateThresholdType(t string) error {
	if !ValidThresholdTypes[ThresholdType(t)] {
		return fmt.Errorf("invalid threshold type %q", t)
	}
	return nil
}

// RuleScope narrows a threshold rule to subsets of the query
// dimensions. An empty set is a wildcard for that dimension.
type RuleScope struct {
	GLAccounts   []string `json:"gl_accounts,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	VoucherTypes []string `json:"voucher_types,omitempty"`
}

// Specificity is the count of non-wildcard dimensions (0-3).
// Higher wins during resolution.
func (s *RuleScope) Specificity() int {
	n := 0
	if len(s.GLAccounts) > 0 {
		n++
	}
	if len(s.Categories) > 0 {
		n++
	}
	if len(s.VoucherTypes) > 0 {
		n++
	}
	return n
}

// ThresholdRule is one resolvable tolerance entry.
type ThresholdRule struct {
	Type        ThresholdType `json:"type"`
	Value       float64       `json:"value"`
	Description string        `json:"description"`
	Scope       RuleScope     `json:"scope"`
}

// ThresholdContract is an immutable, versioned tolerance catalog for
// one country (or the DEFAULT sentinel).
type ThresholdContract struct {
	Country       string          `json:"country"`
	Version       int             `json:"version"`
	EffectiveDate time.Time       `json:"effective_date"`
	Description   string          `json:"description,omitempty"`
	Rules         []ThresholdRule `json:"rules"`
	Hash          string          `json:"hash"`
}

// ThresholdSource tags where a resolved value came from.
type ThresholdSource string

const (
	// SourceCatalog means a contract rule matched (country or DEFAULT).
	SourceCatalog ThresholdSource = "catalog"
	// SourceFallback means the hardcoded constant served the query.
	SourceFallback ThresholdSource = "fallback"
)

// ResolvedThreshold is the provenance-complete answer to one threshold
// query. Country always echoes the QUERIED code, even when the DEFAULT
// contract or the hardcoded fallback served it.
type ResolvedThreshold struct {
	Value           float64         `json:"value"`
	Type            ThresholdType   `json:"type"`
	Country         string          `json:"country"`
	ContractVersion int             `json:"contract_version"`
	ContractHash    string          `json:"contract_hash"`
	RuleDescription string          `json:"rule_description"`
	Source          ThresholdSource `json:"source"`
	Specificity     int             `json:"specificity"`
	// MatchedRules counts rules that matched the query scope, for
	// tie diagnostics in the evidence trail.
	MatchedRules int `json:"matched_rules"`
}
