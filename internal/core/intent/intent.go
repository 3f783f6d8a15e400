package intent

import (
	"strings"
)

// Intent is the classified purpose of a question. It drives routing: the two
// aggregation intents go to the deterministic summation path, everything else
// falls through to semantic retrieval.
type Intent int

const (
	Retrieval Intent = iota
	RevenueAggregation
	VolumeAggregation
)

func (i Intent) String() string {
	switch i {
	case RevenueAggregation:
		return "revenue_aggregation"
	case VolumeAggregation:
		return "volume_aggregation"
	default:
		return "retrieval"
	}
}

// IsAggregation reports whether the intent requires a resolved period.
func (i Intent) IsAggregation() bool {
	return i == RevenueAggregation || i == VolumeAggregation
}

// Rule maps a keyword set to an intent. Rules are evaluated in slice order,
// so precedence is data, not code: the revenue rule sits before the volume
// rule because phrases like "total sales volume" match both.
type Rule struct {
	Intent   Intent
	Keywords []string
}

// DefaultRules is the built-in ordered rule list. Revenue is checked before
// volume; anything unmatched classifies as Retrieval.
func DefaultRules() []Rule {
	return []Rule{
		{
			Intent: RevenueAggregation,
			Keywords: []string{
				"total sales", "sum of sales", "aggregate sales", "revenue",
				"sales amount", "total revenue", "how much sales",
				"overall sales", "income", "how much did we make",
			},
		},
		{
			Intent: VolumeAggregation,
			Keywords: []string{
				"total units", "units sold", "sales volume", "quantity sold",
				"total quantity", "overall volume", "how many", "units",
				"volume",
			},
		},
	}
}

// Classify matches text against the ordered rule list and returns the first
// rule whose keyword set hits. It is pure: no I/O, no clock, no state. The
// input is normalized to lower case with punctuation stripped so keyword
// matching is insensitive to phrasing like "Revenue?" or "units, sold".
func Classify(text string, rules []Rule) Intent {
	t := normalize(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(t, kw) {
				return rule.Intent
			}
		}
	}
	return Retrieval
}

func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	// Collapse runs of spaces left behind by stripped punctuation.
	return strings.Join(strings.Fields(b.String()), " ")
}
