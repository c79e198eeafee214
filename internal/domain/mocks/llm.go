// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

// Recognizer is a mock implementation of ports.Recognizer.
type Recognizer struct {
	// Spans are returned for every document unless ByPath has an entry.
	Spans  []entities.DetectedSpan
	ByPath map[string][]entities.DetectedSpan
	Err    error

	Model   string
	Version string
}

// Recognize returns the configured spans or error.
func (m *Recognizer) Recognize(_ context.Context, documentPath, _ string) ([]entities.DetectedSpan, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if spans, ok := m.ByPath[documentPath]; ok {
		return spans, nil
	}
	return m.Spans, nil
}

// ModelInfo returns the configured model name and version.
func (m *Recognizer) ModelInfo() (string, string) {
	return m.Model, m.Version
}

// GenderClassifier is a mock implementation of ports.GenderClassifier.
type GenderClassifier struct {
	Genders map[string]entities.Gender
	Err     error

	mu        sync.Mutex
	CallCount int
}

// Classify returns the configured gender, or unknown.
func (m *GenderClassifier) Classify(_ context.Context, firstName string) (entities.Gender, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if g, ok := m.Genders[firstName]; ok {
		return g, nil
	}
	return entities.GenderUnknown, nil
}

// Validator is a mock implementation of ports.Validator.
type Validator struct {
	// Reject drops spans whose text is listed.
	Reject map[string]bool
	// Edit replaces span text.
	Edit map[string]string
	Err  error

	Calls int
}

// Validate applies Reject and Edit and counts the rest as accepted.
func (m *Validator) Validate(_ context.Context, _ string, _ string, spans []entities.DetectedSpan) (*ports.ValidationResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	res := &ports.ValidationResult{}
	for _, s := range spans {
		if m.Reject[s.Text] {
			res.Rejected++
			continue
		}
		if edited, ok := m.Edit[s.Text]; ok {
			s.Text = edited
			res.Edited++
		} else {
			res.Accepted++
		}
		res.Spans = append(res.Spans, s)
	}
	return res, nil
}
