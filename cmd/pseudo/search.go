package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

func newSearchCmd() *cobra.Command {
	var (
		query     string
		typeName  string
		ambiguous bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Look up mappings",
		Long:  "Lists mappings, optionally matching real or pseudonym names, by type, or only those flagged for review.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := handlers.EntityQuery{Query: query, AmbiguousOnly: ambiguous, Limit: limit}
			if typeName != "" {
				t, err := entities.ParseEntityType(typeName)
				if err != nil {
					return err
				}
				q.EntityType = t
			}

			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				res, err := d.Entity.HandleList(ctx, q)
				if err != nil {
					return fmt.Errorf("searching mappings: %w", err)
				}
				if len(res.Entities) == 0 {
					fmt.Println("No mappings found.")
					return nil
				}
				displayEntities(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Match real or pseudonym names")
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Filter by type (PERSON, LOCATION, ORG)")
	cmd.Flags().BoolVarP(&ambiguous, "ambiguous", "a", false, "Only mappings flagged for review")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultSearchLimit, "Maximum number of mappings to display")

	return cmd
}

func displayEntities(res *handlers.EntityListResult) {
	fmt.Printf("Showing %d of %d mappings:\n\n", len(res.Entities), res.Total)
	for _, e := range res.Entities {
		fmt.Printf("ID: %s\n", e.ID)
		fmt.Printf("  [%s] %s -> %s\n", e.EntityType, e.FullName, e.PseudonymFull)
		if e.Gender != entities.GenderNone {
			fmt.Printf("  Gender: %s\n", e.Gender)
		}
		if e.IsAmbiguous {
			fmt.Printf("  Review: %s\n", strings.TrimSpace(e.AmbiguityReason))
		}
		fmt.Printf("  First seen: %s\n\n", e.FirstSeen.Format("2006-01-02 15:04"))
	}
}
