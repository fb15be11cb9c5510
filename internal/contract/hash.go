package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-hashed contract identity. The version
// suffix enables future algorithm migration without hash collisions
// across generations.
const (
	DomainDatasetContract   = "soxauto/dataset-contract/v1"
	DomainThresholdContract = "soxauto/threshold-contract/v1"
)

// FallbackHash is the sentinel recorded on a ResolvedThreshold when
// the hardcoded constant served the query (no contract involved).
const FallbackHash = "fallback"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DatasetContractHash computes the content hash of a dataset contract.
// The hash covers the normalized contract content (not the raw source
// bytes), so formatting and key-order differences in the source never
// change it. The stored Hash field itself is excluded.
func DatasetContractHash(c *DatasetContract) (string, error) {
	fields := make([]any, len(c.Fields))
	for i, f := range c.Fields {
		entry := map[string]any{
			"name":     f.Name,
			"required": f.Required,
			"dtype":    string(f.DType),
			"semantic": string(f.Semantic),
			"fill":     string(f.Fill),
			"critical": f.Critical,
		}
		if len(f.Aliases) > 0 {
			entry["aliases"] = f.Aliases
		}
		if f.Coercion.StripCurrency {
			entry["strip_currency"] = true
		}
		if f.Coercion.StripGrouping {
			entry["strip_grouping"] = true
		}
		if len(f.Coercion.DateFormats) > 0 {
			entry["date_formats"] = f.Coercion.DateFormats
		}
		if len(f.Rules) > 0 {
			entry["rules"] = f.Rules
		}
		fields[i] = entry
	}

	obj := map[string]any{
		"id":         c.ID,
		"version":    c.Version,
		"deprecated": c.Deprecated,
		"fields":     fields,
	}
	if len(c.PrimaryKey) > 0 {
		obj["primary_key"] = c.PrimaryKey
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DatasetContractHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDatasetContract, canonical), nil
}

// ThresholdContractHash computes the content hash of a threshold
// contract over its normalized content.
func ThresholdContractHash(c *ThresholdContract) (string, error) {
	rules := make([]any, len(c.Rules))
	for i, r := range c.Rules {
		entry := map[string]any{
			"type":        string(r.Type),
			"value":       r.Value,
			"description": r.Description,
		}
		if len(r.Scope.GLAccounts) > 0 {
			entry["gl_accounts"] = r.Scope.GLAccounts
		}
		if len(r.Scope.Categories) > 0 {
			entry["categories"] = r.Scope.Categories
		}
		if len(r.Scope.VoucherTypes) > 0 {
			entry["voucher_types"] = r.Scope.VoucherTypes
		}
		rules[i] = entry
	}

	obj := map[string]any{
		"country": c.Country,
		"version": c.Version,
		"rules":   rules,
	}
	if !c.EffectiveDate.IsZero() {
		obj["effective_date"] = c.EffectiveDate.UTC().Format("2006-01-02")
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ThresholdContractHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainThresholdContract, canonical), nil
}

// MustDatasetContractHash is like DatasetContractHash but panics on
// error. Use only in tests or with known-valid contracts.
func MustDatasetContractHash(c *DatasetContract) string {
	h, err := DatasetContractHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
