package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func validRecord() model.PlayerRecord {
	return model.PlayerRecord{
		Identity:    "s1mple",
		Team:        "Natus Vincere",
		Nationality: "Ukraine",
		Age:         28,
		Role:        model.RoleAWPer,
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	res := New(DefaultRules()).Validate(validRecord())
	assert.True(t, res.Valid())
	assert.Empty(t, res.Warnings)
	assert.Equal(t, validRecord(), res.Cleaned)
}

func TestValidate_IdentityErrors(t *testing.T) {
	t.Parallel()

	v := New(DefaultRules())
	for _, id := range []string{"", " ", "x"} {
		rec := validRecord()
		rec.Identity = id
		res := v.Validate(rec)
		assert.False(t, res.Valid(), "identity %q", id)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "identity", res.Errors[0].Field)
	}
}

func TestValidate_LongIdentityTruncated(t *testing.T) {
	t.Parallel()

	rec := validRecord()
	rec.Identity = strings.Repeat("a", 25)
	res := New(DefaultRules()).Validate(rec)

	assert.True(t, res.Valid())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, strings.Repeat("a", 20), res.Cleaned.Identity)
}

func TestValidate_AgeRange(t *testing.T) {
	t.Parallel()

	v := New(DefaultRules())
	tests := []struct {
		age  int
		want int
		warn bool
	}{
		{15, 15, false},
		{50, 50, false},
		{14, model.UnknownAge, true},
		{51, model.UnknownAge, true},
		{-3, model.UnknownAge, true},
		{model.UnknownAge, model.UnknownAge, false},
	}
	for _, tt := range tests {
		rec := validRecord()
		rec.Age = tt.age
		res := v.Validate(rec)
		assert.True(t, res.Valid())
		assert.Equal(t, tt.want, res.Cleaned.Age, "age %d", tt.age)
		assert.Equal(t, tt.warn, len(res.Warnings) == 1, "age %d", tt.age)
	}
}

func TestValidate_RoleTaxonomy(t *testing.T) {
	t.Parallel()

	v := New(DefaultRules())

	rec := validRecord()
	rec.Role = "awper"
	res := v.Validate(rec)
	assert.Equal(t, model.RoleAWPer, res.Cleaned.Role)
	assert.Empty(t, res.Warnings)

	rec.Role = "Streamer"
	res = v.Validate(rec)
	assert.True(t, res.Valid())
	assert.Equal(t, model.UnknownRole, res.Cleaned.Role)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "role", res.Warnings[0].Field)

	rec.Role = model.UnknownRole
	res = v.Validate(rec)
	assert.Empty(t, res.Warnings)
}

func TestValidate_NationalityWarnsOnly(t *testing.T) {
	t.Parallel()

	v := New(DefaultRules())

	rec := validRecord()
	rec.Nationality = "Atlantis"
	res := v.Validate(rec)
	assert.True(t, res.Valid())
	assert.Equal(t, "Atlantis", res.Cleaned.Nationality)
	require.Len(t, res.Warnings, 1)

	rec.Nationality = model.UnknownNationality
	res = v.Validate(rec)
	assert.Empty(t, res.Warnings)

	rec.Nationality = "FRANCE"
	res = v.Validate(rec)
	assert.Empty(t, res.Warnings)
}

func TestValidate_EmptyFieldsBecomeSentinels(t *testing.T) {
	t.Parallel()

	res := New(DefaultRules()).Validate(model.PlayerRecord{Identity: "NiKo"})
	assert.Equal(t, model.NewPlayerRecord("NiKo"), res.Cleaned)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	recs := []model.PlayerRecord{
		validRecord(),
		{Identity: "ZywOo", Team: "Team Vitality", Nationality: "France", Age: 25, Role: model.RoleAWPer},
		{Identity: "x", Team: model.UnknownTeam, Nationality: "France", Age: 99, Role: "Streamer"},
		model.NewPlayerRecord("ghost404"),
	}
	s := New(DefaultRules()).Summarize(recs)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Valid)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 2, s.Warnings)
	assert.Equal(t, FieldStats{Valid: 2, Invalid: 1, Unknown: 1}, s.Age)
	assert.Equal(t, FieldStats{Valid: 2, Invalid: 1, Unknown: 1}, s.Role)
	assert.Equal(t, []model.Count{{Label: "France", N: 2}, {Label: "Ukraine", N: 1}}, s.Nationalities)

	text := s.Text(10)
	assert.Contains(t, text, "Total records: 4")
	assert.Contains(t, text, "Valid: 3 (75.0%)")
	assert.Contains(t, text, "- France: 2 (50.0%)")
}
