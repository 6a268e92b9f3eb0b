package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roster-cli/internal/model"
)

func TestNormalizeRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Entry Fragger", model.RoleRifler},
		{"Lurker/Support", model.RoleSupport},
		{"Support/Lurker", model.RoleSupport},
		{"Rifler/AWPer", model.RoleRifler},
		{"AWPer/Rifler", model.RoleAWPer},
		{"In-game leader", model.RoleRifler},
		{"IGL", model.RoleRifler},
		{"Assistant Coach", model.RoleCoach},
		{"Head Coach", model.RoleCoach},
		{"AWPer", model.RoleAWPer},
		{"Primary sniper", model.RoleAWPer},
		{"[[Lurker]]", model.RoleLurker},
		{"support", model.RoleSupport},
		{"Player", model.RoleRifler},
		{"", model.UnknownRole},
		{"   ", model.UnknownRole},
		{"streamer", "Streamer"},
		{"content creator", "Content creator"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRole(tt.in), tt.in)
	}
}

func TestNormalizeRole_NeverEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "x", "<br>", "[[]]", "''", "analyst", "观察者"} {
		got := NormalizeRole(in)
		assert.NotEmpty(t, got, in)
		if _, ok := model.CanonicalRole(got); !ok && got != model.UnknownRole {
			assert.Equal(t, capitalizeFirst(CleanText(in)), got)
		}
	}
}
