package model

import "time"

// RunSummary tallies one sync pass.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run,omitempty"`

	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
	Warnings  int `json:"warnings"`
	// Preserved counts fields kept from the stored record because the fresh
	// extraction did not establish them.
	Preserved int `json:"preserved"`

	FailedIdentities   []string `json:"failed_identities,omitempty"`
	RejectedIdentities []string `json:"rejected_identities,omitempty"`
}

// Succeeded is the number of identities whose fetch produced a record.
func (s RunSummary) Succeeded() int {
	return s.Created + s.Updated + s.Unchanged
}

// SuccessRate is Succeeded over Processed as a percentage.
func (s RunSummary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded()) / float64(s.Processed) * 100
}

// Duration is the wall time of the pass.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
