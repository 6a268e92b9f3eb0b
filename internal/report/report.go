// Package report computes aggregate statistics over a finished record set.
// Generating a report never mutates the records.
package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/roster-cli/internal/model"
)

// DefaultTopN is the length of the nationality table.
const DefaultTopN = 10

// FieldCompleteness counts records with a known value for one field.
type FieldCompleteness struct {
	Field   model.Field `json:"field"`
	Known   int         `json:"known"`
	Percent float64     `json:"percent"`
}

// Report holds the computed statistics.
type Report struct {
	Total         int                 `json:"total"`
	Complete      int                 `json:"complete"`
	Completeness  []FieldCompleteness `json:"completeness"`
	Nationalities []model.Count       `json:"nationalities"`
	Roles         []model.Count       `json:"roles"`
	TopN          int                 `json:"top_n"`
	Run           *model.RunSummary   `json:"run,omitempty"`
}

// Generate computes a report over records. Distributions count known values
// only and are ordered by count descending, then label ascending.
func Generate(records []model.PlayerRecord, topN int) Report {
	if topN <= 0 {
		topN = DefaultTopN
	}
	r := Report{Total: len(records), TopN: topN}

	known := make(map[model.Field]int, len(model.Fields()))
	nations := make(map[string]int)
	roles := make(map[string]int)
	for _, rec := range records {
		for _, f := range model.Fields() {
			if rec.Known(f) {
				known[f]++
			}
		}
		if rec.Completeness() == len(model.Fields()) {
			r.Complete++
		}
		if rec.Known(model.FieldNationality) {
			nations[rec.Nationality]++
		}
		if rec.Known(model.FieldRole) {
			roles[rec.Role]++
		}
	}

	for _, f := range model.Fields() {
		r.Completeness = append(r.Completeness, FieldCompleteness{
			Field:   f,
			Known:   known[f],
			Percent: percent(known[f], r.Total),
		})
	}
	r.Nationalities = model.Rank(nations)
	r.Roles = model.Rank(roles)
	return r
}

// WithRun returns a copy of r that also reports on a sync pass.
func (r Report) WithRun(s model.RunSummary) Report {
	r.Run = &s
	return r
}

// TopNationalities returns at most TopN nationality rows.
func (r Report) TopNationalities() []model.Count {
	if len(r.Nationalities) <= r.TopN {
		return r.Nationalities
	}
	return r.Nationalities[:r.TopN]
}

// Text renders the report as plain text with fixed sections.
func (r Report) Text() string {
	var b strings.Builder

	b.WriteString("Player Statistics Report\n")
	b.WriteString("========================\n")
	fmt.Fprintf(&b, "Total players: %d\n", r.Total)
	fmt.Fprintf(&b, "Complete records: %d (%.1f%%)\n\n", r.Complete, percent(r.Complete, r.Total))

	b.WriteString("Field completeness:\n")
	for _, c := range r.Completeness {
		fmt.Fprintf(&b, "- %s: %d/%d (%.1f%%)\n", c.Field, c.Known, r.Total, c.Percent)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Nationality distribution (top %d):\n", r.TopN)
	writeCounts(&b, r.TopNationalities(), r.Total)
	b.WriteString("\n")

	b.WriteString("Role distribution:\n")
	writeCounts(&b, r.Roles, r.Total)

	if r.Run != nil {
		s := r.Run
		b.WriteString("\nUpdate summary:\n")
		fmt.Fprintf(&b, "- Run: %s\n", s.RunID)
		if s.DryRun {
			b.WriteString("- Dry run: nothing was written\n")
		}
		fmt.Fprintf(&b, "- Processed: %d\n", s.Processed)
		fmt.Fprintf(&b, "- Succeeded: %d (%.1f%%)\n", s.Succeeded(), s.SuccessRate())
		fmt.Fprintf(&b, "- Created: %d, updated: %d, unchanged: %d\n", s.Created, s.Updated, s.Unchanged)
		fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
		fmt.Fprintf(&b, "- Rejected: %d\n", s.Rejected)
		fmt.Fprintf(&b, "- Fields kept from stored records: %d\n", s.Preserved)
		fmt.Fprintf(&b, "- Validation warnings: %d\n", s.Warnings)
		if len(s.FailedIdentities) > 0 {
			fmt.Fprintf(&b, "- Failed identities: %s\n", strings.Join(s.FailedIdentities, ", "))
		}
	}
	return b.String()
}

func writeCounts(b *strings.Builder, counts []model.Count, total int) {
	if len(counts) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(b, "- %s: %d (%.1f%%)\n", c.Label, c.N, percent(c.N, total))
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
