package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/metrics"
)

// ErasureStore is what erasure needs from a store session.
type ErasureStore interface {
	ports.MappingStore
	ports.AuditLog
}

// ErasureResult describes a completed erasure.
type ErasureResult struct {
	// Entity is the snapshot taken just before deletion.
	Entity    *entities.Entity
	Operation *entities.Operation
}

// ErasureService permanently removes mappings (right to erasure).
type ErasureService struct {
	store   ErasureStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewErasureService creates a new ErasureService.
func NewErasureService(store ErasureStore, logger *slog.Logger, m *metrics.Metrics) *ErasureService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErasureService{store: store, logger: logger, metrics: m}
}

// Erase deletes the entity named by identifier, a full name or an id
// prefix, and records one ERASURE operation in the same transaction. It
// returns entities.ErrNotFound when nothing matches.
func (s *ErasureService) Erase(ctx context.Context, identifier, reason string) (*ErasureResult, error) {
	ctx, span := tracer.Start(ctx, "pseudo.Erase")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, entities.ErrNotFound
	}

	var result ErasureResult
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		snapshot, err := s.store.DeleteByFullName(ctx, identifier)
		if errors.Is(err, entities.ErrNotFound) {
			snapshot, err = s.store.DeleteByID(ctx, identifier)
		}
		if err != nil {
			return err
		}

		op := &entities.Operation{
			OperationType: entities.OperationErasure,
			Files:         []string{},
			UserModifications: map[string]any{
				"entity_id":   snapshot.ID,
				"entity_name": snapshot.FullName,
				"entity_type": string(snapshot.EntityType),
				"reason":      reason,
			},
			EntityCount: 1,
			Success:     true,
			Timestamp:   time.Now().UTC(),
		}
		if err := s.store.AppendOperation(ctx, op); err != nil {
			return fmt.Errorf("recording erasure: %w", err)
		}

		result = ErasureResult{Entity: snapshot, Operation: op}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "erasure failed")
		if errors.Is(err, entities.ErrNotFound) || errors.Is(err, entities.ErrAmbiguousPrefix) {
			return nil, err
		}
		return nil, fmt.Errorf("erasing entity: %w", err)
	}

	s.metrics.IncrementErasure()
	span.SetStatus(codes.Ok, "")
	s.logger.Info("entity erased", "entity_id", result.Entity.ID, "entity_type", result.Entity.EntityType)
	return &result, nil
}
