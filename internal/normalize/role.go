package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/roster-cli/internal/model"
)

// roleRule maps a lower-case substring to a canonical role.
type roleRule struct {
	match string
	role  string
}

// roleRules is evaluated top to bottom and the first substring hit wins.
// Compound slash forms resolve to their first keyword, so they come first.
// Coaching terms precede everything else ("assistant coach" must not fall
// through to a player role). Leadership and entry terms map to Rifler.
// "player" is the catch-all for generic roster labels.
var roleRules = []roleRule{
	{"rifler/awper", model.RoleRifler},
	{"awper/rifler", model.RoleAWPer},
	{"lurker/support", model.RoleSupport},
	{"support/lurker", model.RoleSupport},
	{"assistant coach", model.RoleCoach},
	{"head coach", model.RoleCoach},
	{"coach", model.RoleCoach},
	{"awper", model.RoleAWPer},
	{"sniper", model.RoleAWPer},
	{"in-game leader", model.RoleRifler},
	{"igl", model.RoleRifler},
	{"entry fragger", model.RoleRifler},
	{"entry", model.RoleRifler},
	{"fragger", model.RoleRifler},
	{"rifler", model.RoleRifler},
	{"support", model.RoleSupport},
	{"lurker", model.RoleLurker},
	{"player", model.RoleRifler},
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// NormalizeRole maps raw role text to the role taxonomy. Text that matches
// no rule is returned with its first letter capitalized so it survives for
// manual review. Empty text yields model.UnknownRole.
func NormalizeRole(raw string) string {
	cleaned := CleanText(raw)
	if cleaned == "" {
		return model.UnknownRole
	}
	lower := strings.ToLower(cleaned)
	for _, r := range roleRules {
		if strings.Contains(lower, r.match) {
			return r.role
		}
	}
	return capitalizeFirst(cleaned)
}

// capitalizeFirst upper-cases the first word's initial, leaving the rest of
// the text as written.
func capitalizeFirst(s string) string {
	first, rest, found := strings.Cut(s, " ")
	first = titleCaser.String(first)
	if !found {
		return first
	}
	return first + " " + rest
}
