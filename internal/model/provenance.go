package model

// FieldChange records one field whose stored value moved during a
// reconciliation step.
type FieldChange struct {
	Field    Field  `json:"field"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Source   string `json:"source"`
}
