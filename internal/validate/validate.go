package validate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/roster-cli/internal/model"
)

// Issue is one validation finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Result is the outcome of validating one record. Cleaned carries the record
// with every warned field demoted to its sentinel.
type Result struct {
	Errors   []Issue            `json:"errors,omitempty"`
	Warnings []Issue            `json:"warnings,omitempty"`
	Cleaned  model.PlayerRecord `json:"cleaned"`
}

// Valid reports whether the record has no errors. Warnings never block.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Validator applies Rules to records.
type Validator struct {
	rules Rules
}

// New returns a Validator for rules.
func New(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Rules returns the rules in effect.
func (v *Validator) Rules() Rules { return v.rules }

// Validate checks rec. Identity problems are errors; age, role and
// nationality problems are warnings.
func (v *Validator) Validate(rec model.PlayerRecord) Result {
	res := Result{Cleaned: rec}

	identity := strings.TrimSpace(rec.Identity)
	res.Cleaned.Identity = identity
	switch n := utf8.RuneCountInString(identity); {
	case n == 0:
		res.Errors = append(res.Errors, Issue{Field: "identity", Message: "missing"})
	case n < v.rules.MinIdentityLen:
		res.Errors = append(res.Errors, Issue{Field: "identity", Message: fmt.Sprintf("%q shorter than %d", identity, v.rules.MinIdentityLen)})
	case v.rules.MaxIdentityLen > 0 && n > v.rules.MaxIdentityLen:
		res.Warnings = append(res.Warnings, Issue{Field: "identity", Message: fmt.Sprintf("%q longer than %d, truncated", identity, v.rules.MaxIdentityLen)})
		res.Cleaned.Identity = string([]rune(identity)[:v.rules.MaxIdentityLen])
	}

	if rec.Age != model.UnknownAge && (rec.Age < v.rules.MinAge || rec.Age > v.rules.MaxAge) {
		res.Warnings = append(res.Warnings, Issue{Field: "age", Message: strconv.Itoa(rec.Age) + " out of range"})
		res.Cleaned.Age = model.UnknownAge
	}

	if rec.Role == "" {
		res.Cleaned.Role = model.UnknownRole
	} else if rec.Role != model.UnknownRole {
		if canon, ok := model.CanonicalRole(rec.Role); ok {
			res.Cleaned.Role = canon
		} else {
			res.Warnings = append(res.Warnings, Issue{Field: "role", Message: fmt.Sprintf("%q not in taxonomy", rec.Role)})
			res.Cleaned.Role = model.UnknownRole
		}
	}

	if strings.TrimSpace(rec.Team) == "" {
		res.Cleaned.Team = model.UnknownTeam
	}

	switch {
	case strings.TrimSpace(rec.Nationality) == "":
		res.Cleaned.Nationality = model.UnknownNationality
	case rec.Nationality != model.UnknownNationality && !v.rules.KnownNationality(rec.Nationality):
		res.Warnings = append(res.Warnings, Issue{Field: "nationality", Message: fmt.Sprintf("%q not recognized", rec.Nationality)})
	}

	return res
}
