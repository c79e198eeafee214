package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/infrastructure/relationaldb/sqlite"
)

func newDestroyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the mapping store",
		Long: "Permanently deletes the encrypted store: every mapping and the whole audit log.\n" +
			"The database and its journal files are overwritten before they are unlinked.\n" +
			"Pseudonymized documents can no longer be linked back to anyone.",
		RunE: func(_ *cobra.Command, _ []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			path := ws.cfg.StorePath(ws.cwd)
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Printf("No store at %s\n", path)
					return nil
				}
				return fmt.Errorf("checking store file: %w", err)
			}

			if !force {
				warn("this deletes every mapping and the audit log in %s", path)
				if !confirmAction("Destroy the store?") {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			if err := sqlite.DestroyStore(path); err != nil {
				return err
			}
			ws.logger.Info("store destroyed")
			fmt.Println("Store destroyed.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
