package entities

import (
	"fmt"
	"strings"
	"time"
)

// EntityType is the category of a recognised span.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityLocation     EntityType = "LOCATION"
	EntityOrganization EntityType = "ORG"
)

// ParseEntityType accepts the canonical names plus the common recognizer
// aliases (PER, LOC, ORGANIZATION), case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PERSON", "PER":
		return EntityPerson, nil
	case "LOCATION", "LOC":
		return EntityLocation, nil
	case "ORG", "ORGANIZATION":
		return EntityOrganization, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Gender is the grammatical gender resolved for a PERSON first name.
// The empty value is used for LOCATION and ORG entities.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderNeutral Gender = "neutral"
	GenderUnknown Gender = "unknown"
	GenderNone    Gender = ""
)

// IsKnown reports whether g selects a gendered partition.
func (g Gender) IsKnown() bool {
	return g == GenderMale || g == GenderFemale
}

// ComponentKind names a PERSON name component column.
type ComponentKind string

const (
	ComponentFirstName ComponentKind = "first_name"
	ComponentLastName  ComponentKind = "last_name"
	// ComponentFull is only meaningful for pseudonym lookups.
	ComponentFull ComponentKind = "full_name"
)

// Entity is one real identity and the pseudonym assigned to it.
type Entity struct {
	ID              string     `json:"id"`
	EntityType      EntityType `json:"entity_type"`
	FullName        string     `json:"full_name"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	PseudonymFull   string     `json:"pseudonym_full"`
	PseudonymFirst  string     `json:"pseudonym_first,omitempty"`
	PseudonymLast   string     `json:"pseudonym_last,omitempty"`
	Theme           Theme      `json:"theme"`
	Gender          Gender     `json:"gender,omitempty"`
	Confidence      float64    `json:"confidence"`
	IsAmbiguous     bool       `json:"is_ambiguous"`
	AmbiguityReason string     `json:"ambiguity_reason,omitempty"`
	FirstSeen       time.Time  `json:"first_seen"`
}

// Component returns the real component of the given kind.
func (e *Entity) Component(kind ComponentKind) string {
	switch kind {
	case ComponentFirstName:
		return e.FirstName
	case ComponentLastName:
		return e.LastName
	default:
		return e.FullName
	}
}

// PseudonymComponent returns the pseudonym component of the given kind.
func (e *Entity) PseudonymComponent(kind ComponentKind) string {
	switch kind {
	case ComponentFirstName:
		return e.PseudonymFirst
	case ComponentLastName:
		return e.PseudonymLast
	default:
		return e.PseudonymFull
	}
}

// SaveOutcome tells whether Save inserted a row or found one already there.
type SaveOutcome int

const (
	Inserted SaveOutcome = iota + 1
	AlreadyExists
)

// SaveResult is returned by MappingStore.Save. On AlreadyExists, Entity is
// the stored row, not the one passed in.
type SaveResult struct {
	Outcome SaveOutcome
	Entity  *Entity
}

// EntityFilter narrows FindAll.
type EntityFilter struct {
	EntityType    EntityType
	Theme         Theme
	AmbiguousOnly bool
	Limit         int
}

// NormalizeName trims and collapses internal whitespace. Case is preserved:
// lookups are exact.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
