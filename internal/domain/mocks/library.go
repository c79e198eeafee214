package mocks

import (
	"fmt"
	"slices"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

// Library is a deterministic ports.PseudonymLibrary. Draw walks the pool
// in order, which makes assignments predictable in tests.
type Library struct {
	Male          []string
	Female        []string
	Neutral       []string
	LastNames     []string
	Locations     []string
	Organizations []string
	Err           error
}

// NewLibrary returns a small library with a few entries per pool.
func NewLibrary() *Library {
	return &Library{
		Male:          []string{"Antoine", "Bruno", "Cyril"},
		Female:        []string{"Claire", "Diane", "Elise"},
		Neutral:       []string{"Camille", "Dominique"},
		LastNames:     []string{"Martin", "Bernard", "Moreau", "Girard"},
		Locations:     []string{"Valbrune", "Saint-Aurel", "Montclair"},
		Organizations: []string{"Nordis", "Altéa", "Quarzo"},
	}
}

// Pool returns the candidates for category and gender.
func (m *Library) Pool(_ entities.Theme, category entities.Category, gender entities.Gender) []string {
	switch category {
	case entities.CategoryFirstName:
		switch gender {
		case entities.GenderMale:
			return slices.Clone(m.Male)
		case entities.GenderFemale:
			return slices.Clone(m.Female)
		case entities.GenderNeutral, entities.GenderUnknown:
			return slices.Clone(m.Neutral)
		default:
			return slices.Concat(m.Male, m.Female, m.Neutral)
		}
	case entities.CategoryLastName:
		return slices.Clone(m.LastNames)
	case entities.CategoryLocation:
		return slices.Clone(m.Locations)
	case entities.CategoryOrganization:
		return slices.Clone(m.Organizations)
	}
	return nil
}

// Draw returns the first candidate taken reports as free.
func (m *Library) Draw(theme entities.Theme, category entities.Category, gender entities.Gender, taken func(string) (bool, error)) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	for _, c := range m.Pool(theme, category, gender) {
		used, err := taken(c)
		if err != nil {
			return "", err
		}
		if !used {
			return c, nil
		}
	}
	return "", fmt.Errorf("category %s: %w", category, entities.ErrPoolExhausted)
}

// Themes lists the available themes.
func (m *Library) Themes() []entities.Theme {
	return slices.Clone(entities.AllThemes)
}
