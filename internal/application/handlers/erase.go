package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

// EraseHandler handles right-to-erasure requests.
type EraseHandler struct {
	erasure *services.ErasureService
}

// NewEraseHandler creates a new EraseHandler.
func NewEraseHandler(erasure *services.ErasureService) *EraseHandler {
	return &EraseHandler{erasure: erasure}
}

// Handle erases the mapping named by identifier (full name, id or id prefix).
func (h *EraseHandler) Handle(ctx context.Context, identifier, reason string) (*services.ErasureResult, error) {
	result, err := h.erasure.Erase(ctx, identifier, reason)
	switch {
	case errors.Is(err, entities.ErrNotFound):
		return nil, fmt.Errorf("no mapping matches the given identifier: %w", err)
	case errors.Is(err, entities.ErrAmbiguousPrefix):
		return nil, fmt.Errorf("id prefix matches several mappings, use a longer prefix: %w", err)
	case err != nil:
		return nil, err
	}
	return result, nil
}
