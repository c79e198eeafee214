// Package gender resolves the gender of first names from an embedded
// dictionary.
package gender

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

//go:embed given_names.yaml
var givenNamesYAML []byte

type givenNames struct {
	Male    []string `yaml:"male"`
	Female  []string `yaml:"female"`
	Neutral []string `yaml:"neutral"`
}

// Dictionary implements ports.GenderClassifier by lookup. Matching ignores
// case, and a hyphenated name resolves by its first part when the whole
// name is unknown.
type Dictionary struct {
	names map[string]entities.Gender
}

// NewDictionary loads the embedded given names. When lib is not nil, the
// gendered first-name pools of every theme are added too, so pseudonyms
// fed back in as input keep their gender.
func NewDictionary(lib ports.PseudonymLibrary) (*Dictionary, error) {
	var raw givenNames
	if err := yaml.Unmarshal(givenNamesYAML, &raw); err != nil {
		return nil, fmt.Errorf("parsing given names: %w", err)
	}

	d := &Dictionary{names: make(map[string]entities.Gender)}
	d.addAll(raw.Male, entities.GenderMale)
	d.addAll(raw.Female, entities.GenderFemale)
	d.addAll(raw.Neutral, entities.GenderNeutral)

	if lib != nil {
		for _, theme := range lib.Themes() {
			d.addAll(lib.Pool(theme, entities.CategoryFirstName, entities.GenderMale), entities.GenderMale)
			d.addAll(lib.Pool(theme, entities.CategoryFirstName, entities.GenderFemale), entities.GenderFemale)
			d.addAll(lib.Pool(theme, entities.CategoryFirstName, entities.GenderNeutral), entities.GenderNeutral)
		}
	}
	return d, nil
}

func (d *Dictionary) addAll(names []string, g entities.Gender) {
	for _, n := range names {
		d.add(n, g)
	}
}

func (d *Dictionary) add(name string, g entities.Gender) {
	key := strings.ToLower(entities.NormalizeName(name))
	if key == "" {
		return
	}
	prev, ok := d.names[key]
	switch {
	case !ok:
		d.names[key] = g
	case prev != g:
		d.names[key] = entities.GenderNeutral
	}
}

// Len returns the number of known names.
func (d *Dictionary) Len() int {
	return len(d.names)
}

// Classify returns the dictionary gender of firstName, or unknown.
func (d *Dictionary) Classify(_ context.Context, firstName string) (entities.Gender, error) {
	key := strings.ToLower(entities.NormalizeName(firstName))
	if g, ok := d.names[key]; ok {
		return g, nil
	}
	if head, _, found := strings.Cut(key, "-"); found {
		if g, ok := d.names[head]; ok {
			return g, nil
		}
	}
	return entities.GenderUnknown, nil
}
