// Package model defines the player record and the values shared across the
// normalize, validate, reconcile and store packages.
package model

import (
	"strconv"
	"strings"
)

// Sentinel values. A field holding its sentinel has no established value;
// none of them is ever a legitimate value for its field.
const (
	UnknownTeam        = "Unknown Team"
	UnknownNationality = "Unknown Nationality"
	UnknownRole        = "Unknown Role"
	UnknownAge         = 0
)

// FreeAgent is a legitimate team value: the player is confirmed to have no
// team. It is not the same thing as UnknownTeam.
const FreeAgent = "Free Agent"

// Canonical roles.
const (
	RoleRifler  = "Rifler"
	RoleAWPer   = "AWPer"
	RoleCoach   = "Coach"
	RoleSupport = "Support"
	RoleLurker  = "Lurker"
)

// Roles is the closed role taxonomy.
var Roles = []string{RoleRifler, RoleAWPer, RoleCoach, RoleSupport, RoleLurker}

// CanonicalRole returns the taxonomy spelling of s (case-insensitive) and
// whether s is a taxonomy member at all.
func CanonicalRole(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(r, s) {
			return r, true
		}
	}
	return "", false
}

// PlayerRecord is one competitor, keyed by Identity.
type PlayerRecord struct {
	Identity    string `json:"identity"`
	Team        string `json:"team"`
	Nationality string `json:"nationality"`
	Age         int    `json:"age"`
	Role        string `json:"role"`
	Source      string `json:"source,omitempty"`
}

// NewPlayerRecord returns a record for identity with every field unknown.
func NewPlayerRecord(identity string) PlayerRecord {
	return PlayerRecord{
		Identity:    identity,
		Team:        UnknownTeam,
		Nationality: UnknownNationality,
		Age:         UnknownAge,
		Role:        UnknownRole,
	}
}

// Known reports whether field f holds an established value.
func (r PlayerRecord) Known(f Field) bool {
	switch f {
	case FieldTeam:
		return r.Team != UnknownTeam && r.Team != ""
	case FieldNationality:
		return r.Nationality != UnknownNationality && r.Nationality != ""
	case FieldAge:
		return r.Age != UnknownAge
	case FieldRole:
		return r.Role != UnknownRole && r.Role != ""
	default:
		return false
	}
}

// Value returns the display string of field f, or "" for an unknown field.
func (r PlayerRecord) Value(f Field) string {
	if !r.Known(f) {
		return ""
	}
	switch f {
	case FieldTeam:
		return r.Team
	case FieldNationality:
		return r.Nationality
	case FieldAge:
		return strconv.Itoa(r.Age)
	case FieldRole:
		return r.Role
	default:
		return ""
	}
}

// CopyField copies field f from src into r.
func (r *PlayerRecord) CopyField(f Field, src PlayerRecord) {
	switch f {
	case FieldTeam:
		r.Team = src.Team
	case FieldNationality:
		r.Nationality = src.Nationality
	case FieldAge:
		r.Age = src.Age
	case FieldRole:
		r.Role = src.Role
	}
}

// Reset sets field f back to its sentinel.
func (r *PlayerRecord) Reset(f Field) {
	r.CopyField(f, NewPlayerRecord(r.Identity))
}

// Completeness returns the number of known non-identity fields.
func (r PlayerRecord) Completeness() int {
	n := 0
	for _, f := range Fields() {
		if r.Known(f) {
			n++
		}
	}
	return n
}

// Equal compares every persisted field. Source is informational and ignored.
func (r PlayerRecord) Equal(o PlayerRecord) bool {
	return r.Identity == o.Identity &&
		r.Team == o.Team &&
		r.Nationality == o.Nationality &&
		r.Age == o.Age &&
		r.Role == o.Role
}
