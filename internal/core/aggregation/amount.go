package aggregation

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/salescope-lab/salescope/internal/core/storage"
)

// Field selects which numeric payload field an aggregation sums. Each field
// has alias keys because the ingested datasets never agreed on a column name.
type Field int

const (
	FieldRevenue Field = iota
	FieldVolume
)

func (f Field) String() string {
	if f == FieldVolume {
		return "volume"
	}
	return "revenue"
}

// Keys returns the payload keys that may carry the field's value, in lookup
// order. The first key that is present wins, even if its value is malformed.
func (f Field) Keys() []string {
	if f == FieldVolume {
		return []string{"sales_vol", "quantity", "sales_volume"}
	}
	return []string{"sales", "sales_amount"}
}

// Lookup pulls the field's raw value out of a record, trying alias keys in
// order. The second return is false when no alias is present.
func (f Field) Lookup(rec storage.Record) (any, bool) {
	for _, key := range f.Keys() {
		if v, ok := rec[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ParseAmount coerces a raw payload value into an exact decimal. The source
// system is known to emit numbers as strings with thousands separators, as
// well as NaN and infinities; all of those must be skipped, never summed.
// The second return is false when the value cannot contribute to a total.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		return ParseAmount(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case json.Number:
		return ParseAmount(string(val))
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
		if cleaned == "" {
			return decimal.Zero, false
		}
		switch strings.ToLower(cleaned) {
		case "nan", "inf", "+inf", "-inf", "infinity", "+infinity", "-infinity":
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
