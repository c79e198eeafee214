package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/infrastructure/library"
)

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List entity types, pseudonym themes and pool sizes",
		RunE: func(_ *cobra.Command, _ []string) error {
			lib, err := library.New()
			if err != nil {
				return fmt.Errorf("loading pseudonym library: %w", err)
			}
			fmt.Println("Entity types")
			for _, info := range entities.DefaultEntityTypes {
				fmt.Printf("  %-22s %s\n", info.Type, info.Description)
			}
			fmt.Println()

			for _, theme := range lib.Themes() {
				fmt.Printf("%s\n", theme)
				for _, row := range []struct {
					label    string
					category entities.Category
					gender   entities.Gender
				}{
					{"first names (male)", entities.CategoryFirstName, entities.GenderMale},
					{"first names (female)", entities.CategoryFirstName, entities.GenderFemale},
					{"first names (neutral)", entities.CategoryFirstName, entities.GenderNeutral},
					{"last names", entities.CategoryLastName, entities.GenderNone},
					{"locations", entities.CategoryLocation, entities.GenderNone},
					{"organizations", entities.CategoryOrganization, entities.GenderNone},
				} {
					fmt.Printf("  %-22s %d\n", row.label, len(lib.Pool(theme, row.category, row.gender)))
				}
			}
			return nil
		},
	}
}
