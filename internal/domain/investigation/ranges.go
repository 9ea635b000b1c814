package investigation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EvaluateRange reports whether value lies outside rng. Supported forms are
// "low-high", "<x", "<=x", ">x" and ">=x". It returns nil when either side
// is not numeric.
func EvaluateRange(value, rng string) *bool {
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	r := strings.Join(strings.Fields(strings.NewReplacer("–", "-", "—", "-").Replace(rng)), "")
	if r == "" {
		return nil
	}

	var abnormal bool
	switch {
	case strings.HasPrefix(r, "<="):
		x, ok := parseDecimal(r[2:])
		if !ok {
			return nil
		}
		abnormal = v.GreaterThan(x)
	case strings.HasPrefix(r, "<"):
		x, ok := parseDecimal(r[1:])
		if !ok {
			return nil
		}
		abnormal = !v.LessThan(x)
	case strings.HasPrefix(r, ">="):
		x, ok := parseDecimal(r[2:])
		if !ok {
			return nil
		}
		abnormal = v.LessThan(x)
	case strings.HasPrefix(r, ">"):
		x, ok := parseDecimal(r[1:])
		if !ok {
			return nil
		}
		abnormal = !v.GreaterThan(x)
	default:
		// Skip a leading sign so "-5-5" splits on the separator.
		i := strings.Index(r[1:], "-")
		if i < 0 {
			return nil
		}
		low, okLow := parseDecimal(r[:i+1])
		high, okHigh := parseDecimal(r[i+2:])
		if !okLow || !okHigh || low.GreaterThan(high) {
			return nil
		}
		abnormal = v.LessThan(low) || v.GreaterThan(high)
	}
	return &abnormal
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	return d, err == nil
}
