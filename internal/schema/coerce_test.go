package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/SOXauto-sub001/internal/contract"
)

func amountField(fill contract.FillPolicy) *contract.FieldContract {
	return &contract.FieldContract{
		Name:     "amount_lcy",
		DType:    contract.DTypeFloat,
		Semantic: contract.TagAmount,
		Fill:     fill,
		Coercion: contract.CoercionFlags{StripCurrency: true, StripGrouping: true},
	}
}

func strs(ss ...string) []contract.Value {
	out := make([]contract.Value, len(ss))
	for i, s := range ss {
		out[i] = contract.String(s)
	}
	return out
}

func TestCoerceAmountKeepNull(t *testing.T) {
	values := strs("1,234.56", "2,000", "")

	res, err := CoerceColumn(values, amountField(contract.FillKeepNull))
	require.NoError(t, err)

	assert.Equal(t, []contract.Value{
		contract.Float(1234.56),
		contract.Float(2000.0),
		contract.Null{},
	}, values)
	assert.Equal(t, 0, res.Invalid, "empty is absence, not corruption")
	assert.Equal(t, 0, res.Filled)
	assert.Equal(t, 1, res.Nulls)
}

func TestCoerceAmountFillZero(t *testing.T) {
	values := strs("1,234.56", "2,000", "")

	res, err := CoerceColumn(values, amountField(contract.FillZero))
	require.NoError(t, err)

	assert.Equal(t, contract.Float(0), values[2])
	assert.Equal(t, 0, res.Invalid)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 0, res.Nulls)
}

func TestCoerceAmountUnparseableIsInvalid(t *testing.T) {
	values := strs("garbage", "3.14")

	res, err := CoerceColumn(values, amountField(contract.FillKeepNull))
	require.NoError(t, err)

	assert.Equal(t, contract.Null{}, values[0])
	assert.Equal(t, contract.Float(3.14), values[1])
	assert.Equal(t, 1, res.Invalid)
}

func TestCoerceAmountCurrencyAndAccountingNegative(t *testing.T) {
	values := strs("$1,500.00", "EGP 250", "(1,234.56)")

	_, err := CoerceColumn(values, amountField(contract.FillKeepNull))
	require.NoError(t, err)

	assert.Equal(t, contract.Float(1500.0), values[0])
	assert.Equal(t, contract.Float(250.0), values[1])
	assert.Equal(t, contract.Float(-1234.56), values[2], "parenthesized amounts are negative")
}

func TestCoerceAmountWithoutStripFlagsIsStrict(t *testing.T) {
	f := amountField(contract.FillKeepNull)
	f.Coercion = contract.CoercionFlags{}
	values := strs("1,234.56", "500")

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.Null{}, values[0], "grouping kept means parse fails")
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, contract.Float(500.0), values[1])
}

func TestCoerceAmountNumericPassthrough(t *testing.T) {
	values := []contract.Value{contract.Float(1.5), contract.Int(7), contract.Null{}}

	res, err := CoerceColumn(values, amountField(contract.FillKeepNull))
	require.NoError(t, err)

	assert.Equal(t, contract.Float(1.5), values[0])
	assert.Equal(t, contract.Float(7.0), values[1], "ints widen to float")
	assert.Equal(t, 0, res.Invalid)
}

func TestCoerceDateWalksFormatsInOrder(t *testing.T) {
	f := &contract.FieldContract{
		Name: "posting_date", DType: contract.DTypeDate, Semantic: contract.TagDate,
		Fill:     contract.FillKeepNull,
		Coercion: contract.CoercionFlags{DateFormats: []string{"2006-01-02", "02/01/2006"}},
	}
	values := strs("2025-03-15", "31/01/2025", "not a date", "")

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.String("2025-03-15"), values[0])
	assert.Equal(t, contract.String("2025-01-31"), values[1], "day-first format normalized to ISO")
	assert.Equal(t, contract.Null{}, values[2])
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 2, res.Nulls)
}

func TestCoerceIdentifierCollapsesSentinels(t *testing.T) {
	f := &contract.FieldContract{
		Name: "customer_id", DType: contract.DTypeString, Semantic: contract.TagID,
		Fill: contract.FillKeepNull,
	}
	values := []contract.Value{
		contract.String("  C-1001  "),
		contract.String("nan"),
		contract.String("None"),
		contract.Int(18412),
	}

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.String("C-1001"), values[0])
	assert.Equal(t, contract.Null{}, values[1], "pandas nan artifact is a null, not a customer")
	assert.Equal(t, contract.Null{}, values[2])
	assert.Equal(t, contract.String("18412"), values[3])
	assert.Equal(t, 0, res.Invalid)
}

func TestCoerceFlag(t *testing.T) {
	f := &contract.FieldContract{
		Name: "is_open", DType: contract.DTypeBool, Semantic: contract.TagFlag,
		Fill: contract.FillKeepNull,
	}
	values := []contract.Value{
		contract.String("Yes"), contract.String("0"), contract.Bool(true),
		contract.Int(1), contract.String("maybe"),
	}

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.Bool(true), values[0])
	assert.Equal(t, contract.Bool(false), values[1])
	assert.Equal(t, contract.Bool(true), values[2])
	assert.Equal(t, contract.Bool(true), values[3])
	assert.Equal(t, contract.Null{}, values[4])
	assert.Equal(t, 1, res.Invalid)
}

func TestCoerceCount(t *testing.T) {
	f := &contract.FieldContract{
		Name: "doc_count", DType: contract.DTypeInt, Semantic: contract.TagCount,
		Fill: contract.FillKeepNull,
	}
	values := []contract.Value{
		contract.String("42"), contract.String("3.0"), contract.Float(7),
		contract.String("2.5"),
	}

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.Int(42), values[0])
	assert.Equal(t, contract.Int(3), values[1])
	assert.Equal(t, contract.Int(7), values[2])
	assert.Equal(t, contract.Null{}, values[3], "fractional counts do not exist")
	assert.Equal(t, 1, res.Invalid)
}

func TestCoerceFillEmpty(t *testing.T) {
	f := &contract.FieldContract{
		Name: "note", DType: contract.DTypeString, Semantic: contract.TagOther,
		Fill: contract.FillEmpty,
	}
	values := []contract.Value{contract.Null{}, contract.String("kept")}

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, contract.String(""), values[0])
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 0, res.Nulls)
}

func TestCoerceFillZeroRejectsNonNumericTag(t *testing.T) {
	f := &contract.FieldContract{
		Name: "note", DType: contract.DTypeString, Semantic: contract.TagOther,
		Fill: contract.FillZero,
	}

	_, err := CoerceColumn([]contract.Value{contract.Null{}}, f)
	require.Error(t, err)

	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeBadFillConfig, ae.Code)
}

func TestCoerceIsIdempotent(t *testing.T) {
	f := amountField(contract.FillZero)
	values := strs("1,234.56", "")

	_, err := CoerceColumn(values, f)
	require.NoError(t, err)
	first := append([]contract.Value(nil), values...)

	res, err := CoerceColumn(values, f)
	require.NoError(t, err)

	assert.Equal(t, first, values, "coercing coerced output changes nothing")
	assert.Equal(t, 0, res.Invalid)
	assert.Equal(t, 0, res.Filled)
	assert.Equal(t, 0, res.Changed)
}

func TestCoerceReportsChangedCells(t *testing.T) {
	values := strs("1,234.56", "garbage", "")

	res, err := CoerceColumn(values, amountField(contract.FillKeepNull))
	require.NoError(t, err)

	// Parsed amount, nulled garbage, and de-sentineled empty all
	// count; the changed total is what gates cast event recording.
	assert.Equal(t, 3, res.Changed)
}
