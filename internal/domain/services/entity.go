package services

import (
	"context"
	"fmt"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

// EntityService reads decrypted mappings for display and review.
type EntityService struct {
	store ports.MappingStore
}

// NewEntityService creates a new EntityService.
func NewEntityService(store ports.MappingStore) *EntityService {
	return &EntityService{
		store: store,
	}
}

// FindByName finds an entity by its exact full name.
func (s *EntityService) FindByName(ctx context.Context, fullName string) (*entities.Entity, error) {
	return s.store.FindByFullName(ctx, fullName)
}

// Search matches query against real and pseudonym full names.
func (s *EntityService) Search(ctx context.Context, query string, entityType entities.EntityType) ([]*entities.Entity, error) {
	result, err := s.store.SearchEntities(ctx, query, entityType)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	return result, nil
}

// List returns entities matching the filter, oldest first.
func (s *EntityService) List(ctx context.Context, filter entities.EntityFilter) ([]*entities.Entity, error) {
	return s.store.FindAll(ctx, filter)
}

// Ambiguous returns the entities flagged for human review.
func (s *EntityService) Ambiguous(ctx context.Context, entityType entities.EntityType, limit int) ([]*entities.Entity, error) {
	return s.store.FindAll(ctx, entities.EntityFilter{
		EntityType:    entityType,
		AmbiguousOnly: true,
		Limit:         limit,
	})
}

// Count returns the number of stored entities.
func (s *EntityService) Count(ctx context.Context) (int, error) {
	return s.store.CountEntities(ctx)
}
