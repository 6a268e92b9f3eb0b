package normalize

import (
	"regexp"
	"strconv"

	"github.com/sells-group/roster-cli/internal/model"
)

// yearPattern extracts a birth year from free text; group is the submatch
// index holding the year.
type yearPattern struct {
	re    *regexp.Regexp
	group int
}

// Tried in order; the first pattern that yields an in-range age wins.
var yearPatterns = []yearPattern{
	{regexp.MustCompile(`(\d{4})`), 1},
	{regexp.MustCompile(`(?i)born\s+(\d{4})`), 1},
	{regexp.MustCompile(`(\d{4})\s*年`), 1},
	{regexp.MustCompile(`(\d{4})-\d{2}-\d{2}`), 1},
	{regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`), 3},
}

var ageTextRe = regexp.MustCompile(`(?i)^(\d{1,3})(?:\s*(?:years?|yrs?|岁))?(?:\s+old)?$`)

// AgeFromBirth derives an age from birth-date text relative to currentYear.
// It returns model.UnknownAge when no pattern yields an age in [minAge, maxAge].
func AgeFromBirth(raw string, currentYear, minAge, maxAge int) int {
	text := CleanText(raw)
	if text == "" {
		return model.UnknownAge
	}
	for _, p := range yearPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[p.group])
		if err != nil {
			continue
		}
		age := currentYear - year
		if age >= minAge && age <= maxAge {
			return age
		}
	}
	return model.UnknownAge
}

// AgeFromText parses an already-computed age such as "28" or "28 years".
func AgeFromText(raw string, minAge, maxAge int) int {
	m := ageTextRe.FindStringSubmatch(CleanText(raw))
	if m == nil {
		return model.UnknownAge
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age < minAge || age > maxAge {
		return model.UnknownAge
	}
	return age
}
