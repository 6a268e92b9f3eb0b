package normalize

import (
	"strings"
	"time"

	"github.com/sells-group/roster-cli/internal/model"
)

// Kind names a raw extracted field.
type Kind string

const (
	KindTeam        Kind = "team"
	KindNationality Kind = "nationality"
	KindBorn        Kind = "born"
	KindAge         Kind = "age"
	KindRole        Kind = "role"
)

// Kinds lists every raw field kind in application order. A born-derived age
// is applied before a literal age so that an explicit age wins.
func Kinds() []Kind {
	return []Kind{KindTeam, KindNationality, KindBorn, KindAge, KindRole}
}

// freeAgentAliases are team texts that mean "confirmed without a team".
var freeAgentAliases = map[string]bool{
	"none":       true,
	"-":          true,
	"free agent": true,
	"自由选手":       true,
	"no team":    true,
	"n/a":        true,
}

// Normalizer converts raw field text into canonical values.
type Normalizer struct {
	MinAge int
	MaxAge int
	Now    func() time.Time
}

// New returns a Normalizer with the given age bounds and the wall clock.
func New(minAge, maxAge int) *Normalizer {
	return &Normalizer{MinAge: minAge, MaxAge: maxAge, Now: time.Now}
}

func (n *Normalizer) currentYear() int {
	if n.Now == nil {
		return time.Now().Year()
	}
	return n.Now().Year()
}

// Team returns the canonical team for raw text.
func (n *Normalizer) Team(raw string) string {
	t := CleanText(raw)
	if t == "" {
		return model.UnknownTeam
	}
	if freeAgentAliases[strings.ToLower(t)] {
		return model.FreeAgent
	}
	return t
}

// Nationality returns the cleaned nationality. Only the first listed nation
// is kept when a source lists several.
func (n *Normalizer) Nationality(raw string) string {
	t := CleanText(raw)
	if i := strings.IndexAny(t, ",/"); i > 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "" {
		return model.UnknownNationality
	}
	return t
}

// Apply normalizes raw text of the given kind into rec. Unknown kinds are
// ignored. An unparseable literal age does not erase a born-derived one.
func (n *Normalizer) Apply(rec *model.PlayerRecord, kind Kind, raw string) {
	switch kind {
	case KindTeam:
		rec.Team = n.Team(raw)
	case KindNationality:
		rec.Nationality = n.Nationality(raw)
	case KindBorn:
		rec.Age = AgeFromBirth(raw, n.currentYear(), n.MinAge, n.MaxAge)
	case KindAge:
		if age := AgeFromText(raw, n.MinAge, n.MaxAge); age != model.UnknownAge {
			rec.Age = age
		}
	case KindRole:
		rec.Role = NormalizeRole(raw)
	}
}

// BuildRecord produces a candidate record from raw extracted fields keyed by
// Kind. Absent kinds stay at their sentinels.
func (n *Normalizer) BuildRecord(identity, source string, raw map[string]string) model.PlayerRecord {
	rec := model.NewPlayerRecord(strings.TrimSpace(identity))
	rec.Source = source
	for _, k := range Kinds() {
		v, ok := raw[string(k)]
		if !ok {
			continue
		}
		n.Apply(&rec, k, v)
	}
	return rec
}
