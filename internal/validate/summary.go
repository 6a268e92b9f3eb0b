package validate

import (
	"fmt"
	"strings"

	"github.com/sells-group/roster-cli/internal/model"
)

// FieldStats counts valid, invalid and unknown values of one field.
type FieldStats struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Unknown int `json:"unknown"`
}

// Summary aggregates validation outcomes over a record set.
type Summary struct {
	Total         int           `json:"total"`
	Valid         int           `json:"valid"`
	Invalid       int           `json:"invalid"`
	Warnings      int           `json:"warnings"`
	Age           FieldStats    `json:"age"`
	Role          FieldStats    `json:"role"`
	Nationalities []model.Count `json:"nationalities"`
}

// Summarize validates every record and tallies the results. The records are
// not modified.
func (v *Validator) Summarize(records []model.PlayerRecord) Summary {
	s := Summary{Total: len(records)}
	nations := make(map[string]int)
	for _, rec := range records {
		res := v.Validate(rec)
		if res.Valid() {
			s.Valid++
		} else {
			s.Invalid++
		}
		s.Warnings += len(res.Warnings)

		switch {
		case rec.Age == model.UnknownAge:
			s.Age.Unknown++
		case rec.Age >= v.rules.MinAge && rec.Age <= v.rules.MaxAge:
			s.Age.Valid++
		default:
			s.Age.Invalid++
		}

		switch _, ok := model.CanonicalRole(rec.Role); {
		case rec.Role == model.UnknownRole || rec.Role == "":
			s.Role.Unknown++
		case ok:
			s.Role.Valid++
		default:
			s.Role.Invalid++
		}

		if rec.Known(model.FieldNationality) {
			nations[rec.Nationality]++
		}
	}
	s.Nationalities = model.Rank(nations)
	return s
}

// Text renders the summary as a plain-text validation report.
func (s Summary) Text(topN int) string {
	var b strings.Builder
	pct := func(n int) float64 {
		if s.Total == 0 {
			return 0
		}
		return float64(n) / float64(s.Total) * 100
	}

	b.WriteString("Validation Report\n")
	b.WriteString("=================\n")
	fmt.Fprintf(&b, "Total records: %d\n", s.Total)
	fmt.Fprintf(&b, "Valid: %d (%.1f%%)\n", s.Valid, pct(s.Valid))
	fmt.Fprintf(&b, "Invalid: %d (%.1f%%)\n", s.Invalid, pct(s.Invalid))
	fmt.Fprintf(&b, "Warnings: %d\n\n", s.Warnings)

	writeStats := func(title string, fs FieldStats) {
		fmt.Fprintf(&b, "%s:\n", title)
		fmt.Fprintf(&b, "- valid: %d (%.1f%%)\n", fs.Valid, pct(fs.Valid))
		fmt.Fprintf(&b, "- invalid: %d (%.1f%%)\n", fs.Invalid, pct(fs.Invalid))
		fmt.Fprintf(&b, "- unknown: %d (%.1f%%)\n\n", fs.Unknown, pct(fs.Unknown))
	}
	writeStats("Age", s.Age)
	writeStats("Role", s.Role)

	fmt.Fprintf(&b, "Nationality distribution (top %d):\n", topN)
	for i, c := range s.Nationalities {
		if i >= topN {
			break
		}
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", c.Label, c.N, pct(c.N))
	}
	return b.String()
}
