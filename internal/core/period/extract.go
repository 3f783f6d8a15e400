package period

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// months maps lower-case month spellings to their number. Both full names and
// the common abbreviations appear because the source data mixes shapes like
// "2024-01-01" and "Jan 2024".
var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var monthAlternation = func() string {
	names := make([]string, 0, len(months))
	for name := range months {
		names = append(names, name)
	}
	// Longer spellings first so "june" is not cut to "jun" by the regexp engine.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return strings.Join(names, "|")
}()

var (
	reNumericYM   = regexp.MustCompile(`\b(20\d{2})[-/.](\d{1,2})\b`)
	reNumericMY   = regexp.MustCompile(`\b(\d{1,2})[/](20\d{2})\b`)
	reMonthYear   = regexp.MustCompile(`\b(` + monthAlternation + `)\b[\s,]+(20\d{2})\b`)
	reYearMonth   = regexp.MustCompile(`\b(20\d{2})[\s,]+(` + monthAlternation + `)\b`)
	reQuarterYear = regexp.MustCompile(`\bq([1-4])[\s,]*(20\d{2})\b`)
	reQuarterWord = regexp.MustCompile(`\b(first|second|third|fourth) quarter(?: of)? (20\d{2})\b`)
)

var quarterWords = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}

// Extract parses a (year, month) period out of free text. It recognizes
// numeric forms ("2024-01", "1/2024"), month names in any case with full or
// short spellings ("January 2024", "2024 jan"), quarter expressions
// ("Q1 2024", "first quarter of 2024") and the relative phrases "this month"
// and "last month" resolved against now.
//
// Quarters resolve to the quarter's first month: the aggregation engine sums
// a single calendar month, so widening here would silently change totals.
//
// Patterns are tried in a fixed order and the leftmost match of the first
// matching pattern wins, so extraction is deterministic. The second return is
// false when no period is present; that is a normal outcome, not an error.
func Extract(text string, now time.Time) (Period, bool) {
	t := strings.ToLower(text)

	if m := reNumericYM.FindStringSubmatch(t); m != nil {
		if p, ok := fromStrings(m[1], m[2]); ok {
			return p, true
		}
	}
	if m := reNumericMY.FindStringSubmatch(t); m != nil {
		if p, ok := fromStrings(m[2], m[1]); ok {
			return p, true
		}
	}
	if m := reMonthYear.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[2])
		if p, err := New(year, int(months[m[1]])); err == nil {
			return p, true
		}
	}
	if m := reYearMonth.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[1])
		if p, err := New(year, int(months[m[2]])); err == nil {
			return p, true
		}
	}
	if m := reQuarterYear.FindStringSubmatch(t); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if p, err := New(year, (q-1)*3+1); err == nil {
			return p, true
		}
	}
	if m := reQuarterWord.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[2])
		if p, err := New(year, (quarterWords[m[1]]-1)*3+1); err == nil {
			return p, true
		}
	}
	if strings.Contains(t, "this month") {
		u := now.UTC()
		return Period{Year: u.Year(), Month: u.Month()}, true
	}
	if strings.Contains(t, "last month") {
		cur := now.UTC()
		prev := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return Period{Year: prev.Year(), Month: prev.Month()}, true
	}

	return Period{}, false
}

func fromStrings(year, month string) (Period, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return Period{}, false
	}
	p, err := New(y, m)
	if err != nil {
		return Period{}, false
	}
	return p, true
}
