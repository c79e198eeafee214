package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
	"github.com/ersonp/pseudo-core/internal/infrastructure/relationaldb/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new pseudonym store",
		Long: "Creates a .pseudo directory with default configuration and an encrypted mapping store.\n" +
			"The passphrase cannot be recovered: losing it makes every mapping unreadable.",
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg := config.Default()
	if config.Exists(cwd) {
		if cfg, err = config.Load(cwd); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else if p := os.Getenv(config.EnvPassphrase); p != "" {
		cfg.Passphrase = p
	}

	pass, err := passphrase(cfg, true)
	if err != nil {
		return err
	}

	create := func(ctx context.Context, cfg *config.Config, storePath string) (ports.Store, error) {
		repo, err := sqlite.Create(ctx, config.SQLiteConfig{Path: storePath}, cfg.Passphrase, cfg.Crypto.KDFIterations)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	result, err := handlers.NewInitHandler(create).Handle(ctx, cwd, pass)
	if err != nil {
		return err
	}

	fmt.Printf("Config: %s\n", result.ConfigPath)
	fmt.Printf("Store:  %s\n", result.StorePath)
	warn("Keep your passphrase safe. It cannot be recovered.")
	fmt.Println("Pseudo initialized successfully!")
	return nil
}
