package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSemanticTag(t *testing.T) {
	assert.NoError(t, ValidateSemanticTag("amount"))
	assert.NoError(t, ValidateSemanticTag("other"))
	assert.NoError(t, ValidateSemanticTag(""), "empty defaults to other")
	assert.Error(t, ValidateSemanticTag("currency"), "unknown tag rejected")
}

func TestValidateFillPolicy(t *testing.T) {
	assert.NoError(t, ValidateFillPolicy("keep_null"))
	assert.NoError(t, ValidateFillPolicy("fail_on_null"))
	assert.NoError(t, ValidateFillPolicy(""), "empty defaults to keep_null")
	assert.Error(t, ValidateFillPolicy("drop"))
}

func TestValidateThresholdType(t *testing.T) {
	assert.NoError(t, ValidateThresholdType("bucket_aggregate"))
	assert.NoError(t, ValidateThresholdType("line_item"))
	assert.NoError(t, ValidateThresholdType("country_materiality"))
	assert.Error(t, ValidateThresholdType(""))
	assert.Error(t, ValidateThresholdType("bucket"))
}

func TestFieldCandidatesOrder(t *testing.T) {
	f := FieldContract{
		Name:    "customer_id",
		Aliases: []string{"Customer No_", "customer_no"},
	}
	assert.Equal(t,
		[]string{"customer_id", "Customer No_", "customer_no"},
		f.Candidates(),
		"canonical name first, then aliases in declared order")
}

func TestRuleScopeSpecificity(t *testing.T) {
	tests := []struct {
		name  string
		scope RuleScope
		want  int
	}{
		{"wildcard", RuleScope{}, 0},
		{"gl only", RuleScope{GLAccounts: []string{"18412"}}, 1},
		{"gl and category", RuleScope{GLAccounts: []string{"18412"}, Categories: []string{"Voucher"}}, 2},
		{"all three", RuleScope{
			GLAccounts:   []string{"18412"},
			Categories:   []string{"Voucher"},
			VoucherTypes: []string{"manual"},
		}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Specificity())
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", ValueString(Null{}))
	assert.Equal(t, "abc", ValueString(String("abc")))
	assert.Equal(t, "1234.56", ValueString(Float(1234.56)))
	assert.Equal(t, "2000", ValueString(Float(2000)))
	assert.Equal(t, "7", ValueString(Int(7)))
	assert.Equal(t, "true", ValueString(Bool(true)))
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(nil)
	assert.NoError(t, err)
	assert.True(t, IsNull(v))

	v, err = FromAny("x")
	assert.NoError(t, err)
	assert.Equal(t, String("x"), v)

	v, err = FromAny(3.5)
	assert.NoError(t, err)
	assert.Equal(t, Float(3.5), v)

	v, err = FromAny(42)
	assert.NoError(t, err)
	assert.Equal(t, Int(42), v)

	_, err = FromAny(map[string]any{"nested": 1})
	assert.Error(t, err, "datasets are strictly tabular")
}

func TestContractFieldLookup(t *testing.T) {
	c := sampleDatasetContract()

	f, ok := c.Field("amount_lcy")
	assert.True(t, ok)
	assert.Equal(t, TagAmount, f.Semantic)

	_, ok = c.Field("nope")
	assert.False(t, ok)
}
