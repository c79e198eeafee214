package handlers

import (
	"context"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

// EntityHandler handles mapping lookups at the application layer.
type EntityHandler struct {
	entityService *services.EntityService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityService *services.EntityService) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
	}
}

// EntityListResult contains the result of listing entities.
type EntityListResult struct {
	Entities []*entities.Entity `json:"entities"`
	Total    int                `json:"total"`
}

// EntityQuery selects what HandleList returns.
type EntityQuery struct {
	// Query matches real or pseudonym full names. Empty lists everything.
	Query         string
	EntityType    entities.EntityType
	AmbiguousOnly bool
	Limit         int
}

// HandleList returns mappings matching q. Total is the store-wide count.
func (h *EntityHandler) HandleList(ctx context.Context, q EntityQuery) (*EntityListResult, error) {
	var (
		list []*entities.Entity
		err  error
	)
	switch {
	case q.Query != "":
		list, err = h.entityService.Search(ctx, q.Query, q.EntityType)
		if err == nil && q.AmbiguousOnly {
			list = ambiguousOnly(list)
		}
		if err == nil && q.Limit > 0 && len(list) > q.Limit {
			list = list[:q.Limit]
		}
	case q.AmbiguousOnly:
		list, err = h.entityService.Ambiguous(ctx, q.EntityType, q.Limit)
	default:
		list, err = h.entityService.List(ctx, entities.EntityFilter{EntityType: q.EntityType, Limit: q.Limit})
	}
	if err != nil {
		return nil, err
	}

	count, err := h.entityService.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &EntityListResult{
		Entities: list,
		Total:    count,
	}, nil
}

// HandleCount returns the number of stored mappings.
func (h *EntityHandler) HandleCount(ctx context.Context) (int, error) {
	return h.entityService.Count(ctx)
}

func ambiguousOnly(list []*entities.Entity) []*entities.Entity {
	out := list[:0]
	for _, e := range list {
		if e.IsAmbiguous {
			out = append(out, e)
		}
	}
	return out
}
