package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlayerRecord_AllUnknown(t *testing.T) {
	t.Parallel()

	r := NewPlayerRecord("s1mple")
	assert.Equal(t, "s1mple", r.Identity)
	for _, f := range Fields() {
		assert.False(t, r.Known(f), "field %s", f)
		assert.Empty(t, r.Value(f))
	}
	assert.Equal(t, 0, r.Completeness())
}

func TestPlayerRecord_FreeAgentIsKnown(t *testing.T) {
	t.Parallel()

	r := NewPlayerRecord("fer")
	r.Team = FreeAgent
	assert.True(t, r.Known(FieldTeam))
	assert.Equal(t, FreeAgent, r.Value(FieldTeam))
}

func TestPlayerRecord_CopyAndReset(t *testing.T) {
	t.Parallel()

	src := PlayerRecord{Identity: "ZywOo", Team: "Team Vitality", Nationality: "France", Age: 25, Role: RoleAWPer}
	dst := NewPlayerRecord("ZywOo")
	for _, f := range Fields() {
		dst.CopyField(f, src)
	}
	assert.True(t, dst.Equal(src))
	assert.Equal(t, "25", dst.Value(FieldAge))
	assert.Equal(t, 4, dst.Completeness())

	dst.Reset(FieldAge)
	assert.Equal(t, UnknownAge, dst.Age)
	assert.Equal(t, 3, dst.Completeness())
}

func TestCanonicalRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"awper", RoleAWPer, true},
		{" RIFLER ", RoleRifler, true},
		{"coach", RoleCoach, true},
		{"IGL", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseField(t *testing.T) {
	t.Parallel()

	f, ok := ParseField("age")
	assert.True(t, ok)
	assert.Equal(t, FieldAge, f)

	_, ok = ParseField("identity")
	assert.False(t, ok)
}
