package entities

// DetectedSpan is one mention produced by a recognizer. Start and End are
// byte offsets into the document text; End is exclusive.
type DetectedSpan struct {
	Text       string     `json:"text"`
	EntityType EntityType `json:"entity_type"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
	GenderHint Gender     `json:"gender,omitempty"`
}

// Mention is the unit handed to the assignment engine: one distinct
// real identity seen in a document.
type Mention struct {
	Text       string
	EntityType EntityType
	GenderHint Gender
	Confidence float64

	// TokenGender is the classifier's answer for the first name token,
	// filled before assignment starts. Empty means not classified yet.
	TokenGender Gender
}

// AssignmentOutcome tells whether a mention minted a new mapping.
type AssignmentOutcome string

const (
	OutcomeNew    AssignmentOutcome = "NEW"
	OutcomeReused AssignmentOutcome = "REUSED"
)

// Assignment is the engine's answer for one mention.
type Assignment struct {
	Entity  *Entity
	Outcome AssignmentOutcome
}
