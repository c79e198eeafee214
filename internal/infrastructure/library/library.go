// Package library provides the themed pseudonym pools.
package library

import (
	"embed"
	"fmt"
	"math/rand/v2"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

//go:embed themes/*.yaml
var themeFiles embed.FS

// themeYAML is the on-disk layout of a theme file.
type themeYAML struct {
	FirstNames struct {
		Male    []string `yaml:"male"`
		Female  []string `yaml:"female"`
		Neutral []string `yaml:"neutral"`
	} `yaml:"first_names"`
	LastNames     []string `yaml:"last_names"`
	Locations     []string `yaml:"locations"`
	Organizations []string `yaml:"organizations"`
}

type pools struct {
	male          []string
	female        []string
	neutral       []string
	combinedFirst []string
	last          []string
	locations     []string
	organizations []string
}

// Library implements ports.PseudonymLibrary over the embedded theme files.
// It is immutable after New and safe for concurrent use.
type Library struct {
	themes map[entities.Theme]*pools
}

// New loads and validates every theme.
func New() (*Library, error) {
	l := &Library{themes: make(map[entities.Theme]*pools, len(entities.AllThemes))}
	for _, theme := range entities.AllThemes {
		p, err := loadTheme(theme)
		if err != nil {
			return nil, err
		}
		l.themes[theme] = p
	}
	return l, nil
}

func loadTheme(theme entities.Theme) (*pools, error) {
	data, err := themeFiles.ReadFile("themes/" + string(theme) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("reading theme %s: %w", theme, err)
	}

	var raw themeYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing theme %s: %w", theme, err)
	}

	p := &pools{
		male:          dedupe(raw.FirstNames.Male),
		female:        dedupe(raw.FirstNames.Female),
		neutral:       dedupe(raw.FirstNames.Neutral),
		last:          dedupe(raw.LastNames),
		locations:     dedupe(raw.Locations),
		organizations: dedupe(raw.Organizations),
	}
	p.combinedFirst = dedupe(slices.Concat(p.male, p.female, p.neutral))

	for name, pool := range map[string][]string{
		"first_names.male":    p.male,
		"first_names.female":  p.female,
		"first_names.neutral": p.neutral,
		"last_names":          p.last,
		"locations":           p.locations,
		"organizations":       p.organizations,
	} {
		if len(pool) == 0 {
			return nil, fmt.Errorf("theme %s: empty pool %s", theme, name)
		}
	}
	return p, nil
}

// Themes lists the available themes in display order.
func (l *Library) Themes() []entities.Theme {
	return slices.Clone(entities.AllThemes)
}

// Pool returns a copy of the candidates for theme, category and gender.
// For first names, male and female select their partition, neutral and
// unknown select the neutral partition, and GenderNone selects the combined
// pool. gender is ignored for other categories.
func (l *Library) Pool(theme entities.Theme, category entities.Category, gender entities.Gender) []string {
	return slices.Clone(l.pool(theme, category, gender))
}

func (l *Library) pool(theme entities.Theme, category entities.Category, gender entities.Gender) []string {
	p, ok := l.themes[theme]
	if !ok {
		return nil
	}

	switch category {
	case entities.CategoryFirstName:
		switch gender {
		case entities.GenderMale:
			return p.male
		case entities.GenderFemale:
			return p.female
		case entities.GenderNeutral, entities.GenderUnknown:
			return p.neutral
		default:
			return p.combinedFirst
		}
	case entities.CategoryLastName:
		return p.last
	case entities.CategoryLocation:
		return p.locations
	case entities.CategoryOrganization:
		return p.organizations
	default:
		return nil
	}
}

// Draw returns a random candidate for which taken reports false. Candidates
// are tried in a fresh random order on every call. It returns
// entities.ErrPoolExhausted when none is left.
func (l *Library) Draw(theme entities.Theme, category entities.Category, gender entities.Gender, taken func(string) (bool, error)) (string, error) {
	pool := l.pool(theme, category, gender)
	if len(pool) == 0 {
		return "", fmt.Errorf("no pool for theme %q category %q: %w", theme, category, entities.ErrPoolExhausted)
	}

	for _, i := range rand.Perm(len(pool)) {
		candidate := pool[i]
		if taken == nil {
			return candidate, nil
		}
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("theme %s category %s: %w", theme, category, entities.ErrPoolExhausted)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = entities.NormalizeName(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
