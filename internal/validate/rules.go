// Package validate checks canonical player records against domain rules.
package validate

import "strings"

// Rules holds the domain constants a record is checked against.
type Rules struct {
	MinIdentityLen int
	MaxIdentityLen int
	MinAge         int
	MaxAge         int
	// Nationalities is the lower-cased reference set. Empty disables the check.
	Nationalities map[string]bool
}

// DefaultNationalities is the recognized-nation reference list.
var DefaultNationalities = []string{
	"china", "united states", "russia", "ukraine", "denmark", "sweden",
	"poland", "france", "germany", "norway", "estonia", "latvia",
	"brazil", "canada", "israel", "kazakhstan", "netherlands", "guatemala",
	"finland", "spain", "italy", "belgium", "austria", "switzerland",
	"czech republic", "slovakia", "hungary", "romania", "bulgaria",
	"serbia", "croatia", "slovenia", "bosnia and herzegovina",
	"montenegro", "macedonia", "albania", "greece", "turkey",
	"georgia", "armenia", "azerbaijan", "uzbekistan", "kyrgyzstan",
	"tajikistan", "turkmenistan", "mongolia", "japan", "south korea",
	"north korea", "vietnam", "thailand", "malaysia", "singapore",
	"indonesia", "philippines", "india", "pakistan", "bangladesh",
	"sri lanka", "nepal", "bhutan", "myanmar", "laos", "cambodia",
	"australia", "new zealand", "fiji", "papua new guinea",
	"south africa", "egypt", "morocco", "algeria", "tunisia",
	"libya", "sudan", "ethiopia", "kenya", "uganda", "tanzania",
	"zambia", "zimbabwe", "botswana", "namibia", "angola",
	"mozambique", "madagascar", "mauritius", "seychelles",
	"mexico", "argentina", "chile", "peru", "colombia", "venezuela",
	"ecuador", "bolivia", "paraguay", "uruguay", "guyana",
	"suriname", "french guiana", "falkland islands",
	"united kingdom", "portugal", "lithuania", "belarus",
	"ireland", "iceland", "jordan", "saudi arabia", "lebanon",
}

// DefaultRules returns the standard identity and age bounds with the
// default nationality reference set.
func DefaultRules() Rules {
	return Rules{
		MinIdentityLen: 2,
		MaxIdentityLen: 20,
		MinAge:         15,
		MaxAge:         50,
		Nationalities:  NationalitySet(DefaultNationalities),
	}
}

// NationalitySet lower-cases names into a lookup set.
func NationalitySet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = true
		}
	}
	return set
}

// KnownNationality reports whether name is in the reference set. An empty
// set accepts everything.
func (r Rules) KnownNationality(name string) bool {
	if len(r.Nationalities) == 0 {
		return true
	}
	return r.Nationalities[strings.ToLower(strings.TrimSpace(name))]
}
