package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEraseCmd() *cobra.Command {
	var (
		reason string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "erase <full-name|id>",
		Short: "Erase a mapping (right to erasure)",
		Long: "Deletes one real-to-pseudonym mapping by exact full name, id or unique id prefix,\n" +
			"and records an ERASURE entry in the audit log. This cannot be undone.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if !force {
					warn("erasure is irreversible; the pseudonym will not be reassigned to this person")
					if !confirmAction("Erase this mapping?") {
						fmt.Println("Cancelled.")
						return nil
					}
				}

				res, err := d.Erase.Handle(ctx, args[0], reason)
				if err != nil {
					return err
				}
				fmt.Printf("Erased %s mapping %s (operation %s)\n", res.Entity.EntityType, res.Entity.ID, res.Operation.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded in the audit log")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
