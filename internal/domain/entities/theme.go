package entities

import "fmt"

// Theme selects a pseudonym library variant.
type Theme string

const (
	ThemeNeutral  Theme = "neutral"
	ThemeStarWars Theme = "star_wars"
	ThemeLOTR     Theme = "lotr"
)

// AllThemes lists the closed set of themes in display order.
var AllThemes = []Theme{ThemeNeutral, ThemeStarWars, ThemeLOTR}

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	for _, t := range AllThemes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown theme %q (available: neutral, star_wars, lotr)", s)
}

// Category is a pool within a theme.
type Category string

const (
	CategoryFirstName    Category = "first_name"
	CategoryLastName     Category = "last_name"
	CategoryLocation     Category = "location"
	CategoryOrganization Category = "organization"
)

// CategoryFor returns the single-value pool used for non-person entities.
func CategoryFor(t EntityType) Category {
	switch t {
	case EntityLocation:
		return CategoryLocation
	case EntityOrganization:
		return CategoryOrganization
	default:
		return CategoryLastName
	}
}
