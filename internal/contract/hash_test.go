package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDatasetContract() *DatasetContract {
	return &DatasetContract{
		ID:      "ar_open_items",
		Version: 3,
		Fields: []FieldContract{
			{
				Name:     "customer_id",
				Required: true,
				Aliases:  []string{"Customer No_", "customer_no"},
				DType:    DTypeString,
				Semantic: TagID,
				Fill:     FillFailOnNull,
				Critical: true,
			},
			{
				Name:     "amount_lcy",
				Required: true,
				Aliases:  []string{"rem_amt_LCY", "Remaining Amt_ (LCY)"},
				DType:    DTypeFloat,
				Semantic: TagAmount,
				Coercion: CoercionFlags{StripCurrency: true, StripGrouping: true},
				Fill:     FillKeepNull,
			},
		},
		PrimaryKey: []string{"customer_id"},
	}
}

func TestDatasetContractHashDeterminism(t *testing.T) {
	c := sampleDatasetContract()

	h1, err := DatasetContractHash(c)
	require.NoError(t, err)

	h2, err := DatasetContractHash(c)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "hash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestDatasetContractHashIgnoresStoredHash(t *testing.T) {
	c1 := sampleDatasetContract()
	c2 := sampleDatasetContract()
	c2.Hash = "already-populated"

	h1 := MustDatasetContractHash(c1)
	h2 := MustDatasetContractHash(c2)

	assert.Equal(t, h1, h2, "stored Hash field must not feed the hash")
}

func TestDatasetContractHashChangesWithContent(t *testing.T) {
	base := MustDatasetContractHash(sampleDatasetContract())

	bumped := sampleDatasetContract()
	bumped.Version = 4
	assert.NotEqual(t, base, MustDatasetContractHash(bumped), "version change must change hash")

	renamed := sampleDatasetContract()
	renamed.Fields[0].Aliases[0] = "Customer Number"
	assert.NotEqual(t, base, MustDatasetContractHash(renamed), "alias change must change hash")

	reordered := sampleDatasetContract()
	reordered.Fields[0], reordered.Fields[1] = reordered.Fields[1], reordered.Fields[0]
	assert.NotEqual(t, base, MustDatasetContractHash(reordered), "field order is load-bearing and must change hash")
}

func TestThresholdContractHashDeterminism(t *testing.T) {
	c := &ThresholdContract{
		Country: "EG",
		Version: 2,
		Rules: []ThresholdRule{
			{
				Type:        ThresholdBucketAggregate,
				Value:       500,
				Description: "bucket aggregate, voucher category",
				Scope:       RuleScope{Categories: []string{"Voucher"}},
			},
		},
	}

	h1, err := ThresholdContractHash(c)
	require.NoError(t, err)
	h2, err := ThresholdContractHash(c)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestThresholdContractHashChangesWithValue(t *testing.T) {
	c := &ThresholdContract{
		Country: "EG",
		Version: 1,
		Rules:   []ThresholdRule{{Type: ThresholdLineItem, Value: 1000, Description: "line item"}},
	}
	h1, err := ThresholdContractHash(c)
	require.NoError(t, err)

	c.Rules[0].Value = 1500
	h2, err := ThresholdContractHash(c)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "rule value change must change hash")
}

func TestHashDomainSeparation(t *testing.T) {
	// The same logical content hashed under different domains must
	// never collide.
	d := hashWithDomain(DomainDatasetContract, []byte(`{"id":"x"}`))
	th := hashWithDomain(DomainThresholdContract, []byte(`{"id":"x"}`))
	assert.NotEqual(t, d, th)
}
