package model

import "time"

// FailureKind classifies why a fetch yielded no new data.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureStatus      FailureKind = "status"
	FailureBlocked     FailureKind = "blocked"
	FailureShape       FailureKind = "shape"
	FailureCircuitOpen FailureKind = "circuit_open"
)

// FetchFailure is a failure-ledger entry: an identity whose last fetch
// failed and that the next pass may retry.
type FetchFailure struct {
	ID            string      `json:"id"`
	Identity      string      `json:"identity"`
	URL           string      `json:"url,omitempty"`
	Kind          FailureKind `json:"kind"`
	Error         string      `json:"error"`
	Attempts      int         `json:"attempts"`
	FirstFailedAt time.Time   `json:"first_failed_at"`
	LastFailedAt  time.Time   `json:"last_failed_at"`
}
