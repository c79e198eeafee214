// Package main provides the entry point for the pseudo CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/infrastructure/crypto"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx)
	cancel()
	crypto.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "pseudo",
		Short:         "Consistent, reversible pseudonymization of personal names in documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newInitCmd(),
		newProcessCmd(),
		newEraseCmd(),
		newSearchCmd(),
		newAuditCmd(),
		newDestroyCmd(),
		newThemesCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
