package contract

import (
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the cell types a dataset may hold.
// Only Null, String, Float, Int, and Bool implement it. Keeping the
// set closed lets the coercer and canonical marshaler switch
// exhaustively with no silent fallthrough.
type Value interface {
	cellValue() // sealed
}

// Null represents a missing cell. An explicit type (rather than nil)
// keeps every cell satisfying the sealed interface.
type Null struct{}

func (Null) cellValue() {}

// String is a textual cell value.
type String string

func (String) cellValue() {}

// Float is a numeric cell value. Ledger amounts are decimal by nature;
// float64 matches the upstream extract precision and the canonical
// serialization pins a single deterministic rendering.
type Float float64

func (Float) cellValue() {}

// Int is an integer cell value (counts, versions).
type Int int64

func (Int) cellValue() {}

// Bool is a boolean cell value (flags).
type Bool bool

func (Bool) cellValue() {}

// IsNull reports whether v is the Null cell.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return ok
}

// ValueString renders a cell for display and string coercion.
// Null renders as the empty string.
func ValueString(v Value) string {
	switch val := v.(type) {
	case Null:
		return ""
	case String:
		return string(val)
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FromAny converts a decoded YAML/JSON scalar into a Value.
// Unsupported shapes (nested maps, lists) are rejected: datasets are
// strictly tabular.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}

// SortedKeysRFC8785 returns map keys in RFC 8785 canonical order
// (UTF-16 code units). Go's sort.Strings compares UTF-8 bytes, which
// produces a DIFFERENT order for strings outside the BMP.
func SortedKeysRFC8785[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required
// by RFC 8785. Must use unicode/utf16.Encode for correct surrogate
// handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
