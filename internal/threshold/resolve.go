package threshold

import (
	"fmt"
	"log/slog"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
	"github.com/gvern/SOXauto-sub001/internal/contract"
)

// Query identifies one threshold lookup. Country and Type are
// mandatory; the scope dimensions are optional and empty means
// "no specific value", which only wildcard rules can serve.
type Query struct {
	Country     string
	Type        contract.ThresholdType
	GLAccount   string
	Category    string
	VoucherType string
	// Version pins the queried country's contract version; <= 0
	// resolves via env override then latest. The DEFAULT contract is
	// never pinned by this field.
	Version int
}

// Resolver answers threshold queries through the catalog with the
// three-stage chain: country contract, DEFAULT contract, hardcoded
// constant. Every answer carries full provenance; a query can fail
// only on malformed input or a corrupted catalog, never on absence.
type Resolver struct {
	reg *catalog.Registry
}

// NewResolver creates a resolver over a contract registry.
func NewResolver(reg *catalog.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// lookupOutcome is the tri-state result of probing one contract.
// Explicit outcomes instead of error-driven flow: a missing contract
// and a contract with no matching rule are both expected states on the
// way to the next stage.
type lookupOutcome int

const (
	outcomeHit lookupOutcome = iota
	outcomeNoContract
	outcomeNoRule
)

// Resolve answers one threshold query.
//
// Stage 1 probes the queried country's contract, stage 2 the DEFAULT
// contract, stage 3 serves the hardcoded constant. The returned
// Country always echoes the QUERIED code regardless of which stage
// answered; Source and ContractHash say where the value came from.
func (r *Resolver) Resolve(q Query) (*contract.ResolvedThreshold, error) {
	if q.Country == "" {
		return nil, fmt.Errorf("threshold query needs a country code")
	}
	if !contract.ValidThresholdTypes[q.Type] {
		return nil, fmt.Errorf("invalid threshold type %q", q.Type)
	}

	res, outcome, err := r.probe(q.Country, q.Version, q)
	if err != nil {
		return nil, err
	}
	if outcome == outcomeHit {
		return res, nil
	}

	if q.Country != contract.DefaultCountry {
		res, outcome, err = r.probe(contract.DefaultCountry, 0, q)
		if err != nil {
			return nil, err
		}
		if outcome == outcomeHit {
			return res, nil
		}
	}

	slog.Warn("no catalog rule matched, serving hardcoded fallback",
		"country", q.Country, "type", string(q.Type))
	return &contract.ResolvedThreshold{
		Value:           FallbackValue(q.Type),
		Type:            q.Type,
		Country:         q.Country,
		ContractVersion: 0,
		ContractHash:    contract.FallbackHash,
		RuleDescription: "hardcoded fallback constant",
		Source:          contract.SourceFallback,
		Specificity:     0,
		MatchedRules:    0,
	}, nil
}

// probe loads one country's contract and picks the best matching rule.
// A missing contract is an expected miss; compile and validation
// failures propagate, because a corrupted catalog must never silently
// degrade to wider tolerances.
func (r *Resolver) probe(country string, version int, q Query) (*contract.ResolvedThreshold, lookupOutcome, error) {
	tc, err := r.reg.LoadThreshold(country, version)
	if err != nil {
		if catalog.IsNotFound(err) {
			return nil, outcomeNoContract, nil
		}
		return nil, 0, err
	}

	best, matched := pickRule(tc.Rules, q)
	if best == nil {
		return nil, outcomeNoRule, nil
	}

	return &contract.ResolvedThreshold{
		Value:           best.Value,
		Type:            best.Type,
		Country:         q.Country,
		ContractVersion: tc.Version,
		ContractHash:    tc.Hash,
		RuleDescription: best.Description,
		Source:          contract.SourceCatalog,
		Specificity:     best.Scope.Specificity(),
		MatchedRules:    matched,
	}, outcomeHit, nil
}

// pickRule selects the most specific matching rule. Ties on
// specificity keep the earliest declared rule, so resolution is
// deterministic for a fixed contract.
func pickRule(rules []contract.ThresholdRule, q Query) (*contract.ThresholdRule, int) {
	var best *contract.ThresholdRule
	matched := 0
	for i := range rules {
		rule := &rules[i]
		if rule.Type != q.Type || !scopeMatches(&rule.Scope, q) {
			continue
		}
		matched++
		if best == nil || rule.Scope.Specificity() > best.Scope.Specificity() {
			best = rule
		}
	}
	return best, matched
}

// scopeMatches reports whether a rule's scope admits the query.
// Every dimension the rule declares must contain the queried value;
// an undeclared dimension is a wildcard. A declared dimension can
// never match an empty query value.
func scopeMatches(s *contract.RuleScope, q Query) bool {
	if len(s.GLAccounts) > 0 && !containsString(s.GLAccounts, q.GLAccount) {
		return false
	}
	if len(s.Categories) > 0 && !containsString(s.Categories, q.Category) {
		return false
	}
	if len(s.VoucherTypes) > 0 && !containsString(s.VoucherTypes, q.VoucherType) {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
