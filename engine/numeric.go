package engine

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMERIC NORMALIZER - Heterogeneous input to canonical decimal
// =============================================================================

// ParseAmount normalizes heterogeneous numeric input into a decimal value.
// Schedule uploads arrive with locale strings using "," as the decimal
// separator ("1000,50"); payments arrive as JSON numbers. Rules:
//
//   - nil and empty string parse to 0
//   - strings have "," substituted with "." before parsing
//   - malformed non-numeric strings return InvalidNumericFormatError
//
// Precision is preserved as given; rounding to 2 decimals happens downstream
// in the reconciler, never here.
func ParseAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		s = strings.ReplaceAll(s, ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, &InvalidNumericFormatError{Raw: v}
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, &InvalidNumericFormatError{Raw: v.String()}
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, &InvalidNumericFormatError{Raw: "unsupported type"}
	}
}
