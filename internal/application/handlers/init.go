// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
)

// StoreCreator creates a new encrypted store at the configured path.
type StoreCreator func(ctx context.Context, cfg *config.Config, storePath string) (ports.Store, error)

// InitHandler handles workspace initialization.
type InitHandler struct {
	create StoreCreator
}

// NewInitHandler creates a new init handler.
func NewInitHandler(create StoreCreator) *InitHandler {
	return &InitHandler{
		create: create,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	StorePath  string
}

// Handle writes the default config and creates the encrypted store. A
// workspace whose config exists but whose store is missing gets its store
// created.
func (h *InitHandler) Handle(ctx context.Context, basePath, passphrase string) (*InitResult, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	if !config.Exists(basePath) {
		if err := config.WriteDefault(basePath); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Passphrase = passphrase

	storePath := cfg.StorePath(basePath)
	if _, err := os.Stat(storePath); err == nil {
		return nil, fmt.Errorf("pseudo already initialized in %s", basePath)
	}

	store, err := h.create(ctx, cfg, storePath)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("closing store: %w", err)
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		StorePath:  storePath,
	}, nil
}
