package model

// Field names one non-identity column of a PlayerRecord.
type Field string

const (
	FieldTeam        Field = "team"
	FieldNationality Field = "nationality"
	FieldAge         Field = "age"
	FieldRole        Field = "role"
)

// Fields returns the non-identity fields in canonical column order.
func Fields() []Field {
	return []Field{FieldTeam, FieldNationality, FieldAge, FieldRole}
}

// ParseField maps a column key to its Field.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields() {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
