// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

// Recognizer detects named-entity spans in a document.
type Recognizer interface {
	// Recognize returns spans over text. documentPath identifies the source
	// and may be empty.
	Recognize(ctx context.Context, documentPath, text string) ([]entities.DetectedSpan, error)

	// ModelInfo names the model for audit records.
	ModelInfo() (name, version string)
}

// GenderClassifier maps a first-name component to a gender.
type GenderClassifier interface {
	// Classify returns GenderUnknown when the name is not recognised.
	Classify(ctx context.Context, firstName string) (entities.Gender, error)
}

// Validator lets a human reviewer filter and edit recognized spans before
// they reach assignment.
type Validator interface {
	Validate(ctx context.Context, documentID, text string, spans []entities.DetectedSpan) (*ValidationResult, error)
}

// ValidationResult carries the surviving spans and the reviewer's counts.
type ValidationResult struct {
	Spans    []entities.DetectedSpan
	Accepted int
	Rejected int
	Edited   int
}

// PseudonymLibrary draws pseudonym candidates from themed pools.
type PseudonymLibrary interface {
	// Draw returns a random candidate from the pool for theme and category
	// for which taken reports false. gender selects the first-name partition.
	// It returns entities.ErrPoolExhausted when every candidate is taken.
	Draw(theme entities.Theme, category entities.Category, gender entities.Gender, taken func(string) (bool, error)) (string, error)

	// Pool returns the candidates for theme, category and gender partition.
	Pool(theme entities.Theme, category entities.Category, gender entities.Gender) []string

	// Themes lists the available themes.
	Themes() []entities.Theme
}
