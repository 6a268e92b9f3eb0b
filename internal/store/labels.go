package store

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// Locales supported for CSV header and sentinel labels.
const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

// Labels are the human-facing strings a CSV file uses for its header row and
// for fields that hold a sentinel.
type Labels struct {
	Identity    string
	Team        string
	Nationality string
	Age         string
	Role        string

	UnknownTeam        string
	UnknownNationality string
	UnknownAge         string
	UnknownRole        string
	FreeAgent          string
}

var labelSets = map[string]Labels{
	LocaleEN: {
		Identity:           "identity",
		Team:               "team",
		Nationality:        "nationality",
		Age:                "age",
		Role:               "role",
		UnknownTeam:        "Unknown Team",
		UnknownNationality: "Unknown Nationality",
		UnknownAge:         "Unknown Age",
		UnknownRole:        "Unknown Role",
		FreeAgent:          model.FreeAgent,
	},
	LocaleZH: {
		Identity:           "姓名",
		Team:               "队伍",
		Nationality:        "国籍",
		Age:                "年龄",
		Role:               "游戏内位置",
		UnknownTeam:        "未知队伍",
		UnknownNationality: "未知国籍",
		UnknownAge:         "未知年龄",
		UnknownRole:        "未知位置",
		FreeAgent:          "自由选手",
	},
}

// LabelsFor returns the label set for locale.
func LabelsFor(locale string) (Labels, error) {
	l, ok := labelSets[strings.ToLower(locale)]
	if !ok {
		return Labels{}, eris.Errorf("store: unknown locale %q", locale)
	}
	return l, nil
}

// Header returns the column labels in canonical order.
func (l Labels) Header() []string {
	return []string{l.Identity, l.Team, l.Nationality, l.Age, l.Role}
}

// column indexes in the canonical header.
const (
	colIdentity = iota
	colTeam
	colNationality
	colAge
	colRole
	numColumns
)

// detectHeader maps each canonical column to its index in header and
// reports which locale the header is written in. Identity must be present.
func detectHeader(header []string) (idx [numColumns]int, locale string, err error) {
	for _, loc := range []string{LocaleEN, LocaleZH} {
		l := labelSets[loc]
		idx = [numColumns]int{-1, -1, -1, -1, -1}
		for i, h := range header {
			h = strings.TrimSpace(h)
			for c, want := range l.Header() {
				if idx[c] == -1 && strings.EqualFold(h, want) {
					idx[c] = i
				}
			}
		}
		if idx[colIdentity] >= 0 {
			return idx, loc, nil
		}
	}
	return idx, "", eris.Errorf("store: csv header %v has no identity column", header)
}

// parseTeam and friends map a stored cell back to a model value. Labels from
// every locale are accepted so a file can be read regardless of which locale
// wrote it.
func parseTeam(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return model.UnknownTeam
	}
	for _, l := range labelSets {
		switch cell {
		case l.UnknownTeam:
			return model.UnknownTeam
		case l.FreeAgent:
			return model.FreeAgent
		}
	}
	return cell
}

func parseNationality(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return model.UnknownNationality
	}
	for _, l := range labelSets {
		if cell == l.UnknownNationality {
			return model.UnknownNationality
		}
	}
	return cell
}

func parseRole(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return model.UnknownRole
	}
	for _, l := range labelSets {
		if cell == l.UnknownRole {
			return model.UnknownRole
		}
	}
	return cell
}

func isUnknownAge(cell string) bool {
	if cell == "" {
		return true
	}
	for _, l := range labelSets {
		if cell == l.UnknownAge {
			return true
		}
	}
	return false
}

// Row renders rec as CSV cells under l.
func (l Labels) Row(rec model.PlayerRecord) []string {
	out := make([]string, numColumns)
	out[colIdentity] = rec.Identity
	switch {
	case !rec.Known(model.FieldTeam):
		out[colTeam] = l.UnknownTeam
	case rec.Team == model.FreeAgent:
		out[colTeam] = l.FreeAgent
	default:
		out[colTeam] = rec.Team
	}
	out[colNationality] = l.UnknownNationality
	if rec.Known(model.FieldNationality) {
		out[colNationality] = rec.Nationality
	}
	out[colAge] = l.UnknownAge
	if rec.Known(model.FieldAge) {
		out[colAge] = rec.Value(model.FieldAge)
	}
	out[colRole] = l.UnknownRole
	if rec.Known(model.FieldRole) {
		out[colRole] = rec.Role
	}
	return out
}
