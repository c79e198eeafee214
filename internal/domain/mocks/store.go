package mocks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

type txMarker struct{}

// Store is an in-memory implementation of ports.Store. It mirrors the
// SQLite store's observable semantics, including rollback of RunInTx.
// Concurrent transactions are not isolated from each other.
type Store struct {
	mu       sync.Mutex
	entities []*entities.Entity
	ops      []*entities.Operation
	files    map[string]entities.FileRecord
	clock    time.Time

	// Err fails every call when set.
	Err error
	// SaveErr fails Save and SaveBatch.
	SaveErr error
	// FailSaveAt fails the Nth Save call (1-based) with ErrPersistenceFailure.
	FailSaveAt int
	// AppendErr fails AppendOperation.
	AppendErr error
	// RecordFileErr fails RecordFile.
	RecordFileErr error

	SaveCalls   int
	AppendCalls int
	TxCalls     int
	Closed      bool
}

// NewStore creates a new mock Store.
func NewStore() *Store {
	return &Store{
		files: make(map[string]entities.FileRecord),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (m *Store) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func clone(e *entities.Entity) *entities.Entity {
	c := *e
	return &c
}

// FindByFullName finds an entity by its exact normalized full name.
func (m *Store) FindByFullName(_ context.Context, fullName string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if e := m.byFullName(entities.NormalizeName(fullName)); e != nil {
		return clone(e), nil
	}
	return nil, nil
}

func (m *Store) byFullName(fullName string) *entities.Entity {
	for _, e := range m.entities {
		if e.FullName == fullName {
			return e
		}
	}
	return nil
}

// FindByComponent finds PERSON entities by first or last name, oldest first.
func (m *Store) FindByComponent(_ context.Context, value string, kind entities.ComponentKind) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if kind != entities.ComponentFirstName && kind != entities.ComponentLastName {
		return nil, fmt.Errorf("unsupported component kind %q", kind)
	}
	var result []*entities.Entity
	for _, e := range m.entities {
		if e.EntityType == entities.EntityPerson && e.Component(kind) == value {
			result = append(result, clone(e))
		}
	}
	return result, nil
}

// PseudonymComponentInUse reports whether value is an assigned pseudonym
// component of the given kind.
func (m *Store) PseudonymComponentInUse(_ context.Context, value string, kind entities.ComponentKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, e := range m.entities {
		if e.PseudonymComponent(kind) == value {
			return true, nil
		}
	}
	return false, nil
}

// Save inserts the entity, returning the stored row on a full-name collision.
func (m *Store) Save(_ context.Context, entity *entities.Entity) (entities.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.Err != nil {
		return entities.SaveResult{}, m.Err
	}
	if m.SaveErr != nil {
		return entities.SaveResult{}, m.SaveErr
	}
	if m.FailSaveAt > 0 && m.SaveCalls == m.FailSaveAt {
		return entities.SaveResult{}, fmt.Errorf("%w: injected", entities.ErrPersistenceFailure)
	}
	return m.insert(entity)
}

func (m *Store) insert(entity *entities.Entity) (entities.SaveResult, error) {
	entity.FullName = entities.NormalizeName(entity.FullName)
	if entity.FullName == "" {
		return entities.SaveResult{}, errors.New("entity full name is required")
	}
	if existing := m.byFullName(entity.FullName); existing != nil {
		return entities.SaveResult{Outcome: entities.AlreadyExists, Entity: clone(existing)}, nil
	}
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.FirstSeen.IsZero() {
		entity.FirstSeen = m.tick()
	}
	m.entities = append(m.entities, clone(entity))
	return entities.SaveResult{Outcome: entities.Inserted, Entity: entity}, nil
}

// SaveBatch inserts all entities or none.
func (m *Store) SaveBatch(_ context.Context, batch []*entities.Entity) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	before := slices.Clone(m.entities)
	for _, e := range batch {
		res, err := m.insert(e)
		if err == nil && res.Outcome == entities.AlreadyExists {
			err = fmt.Errorf("%w: duplicate full name", entities.ErrPersistenceFailure)
		}
		if err != nil {
			m.entities = before
			return nil, err
		}
	}
	return batch, nil
}

// FindAll lists entities matching the filter, oldest first.
func (m *Store) FindAll(_ context.Context, filter entities.EntityFilter) ([]*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.Entity
	for _, e := range m.entities {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.Theme != "" && e.Theme != filter.Theme {
			continue
		}
		if filter.AmbiguousOnly && !e.IsAmbiguous {
			continue
		}
		result = append(result, clone(e))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// SearchEntities matches query against real and pseudonym full names.
func (m *Store) SearchEntities(ctx context.Context, query string, entityType entities.EntityType) ([]*entities.Entity, error) {
	all, err := m.FindAll(ctx, entities.EntityFilter{EntityType: entityType})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(entities.NormalizeName(query))
	var result []*entities.Entity
	for _, e := range all {
		if needle == "" || strings.Contains(strings.ToLower(e.FullName), needle) ||
			strings.Contains(strings.ToLower(e.PseudonymFull), needle) {
			result = append(result, e)
		}
	}
	return result, nil
}

// DeleteByFullName removes an entity and returns its snapshot.
func (m *Store) DeleteByFullName(_ context.Context, fullName string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	fullName = entities.NormalizeName(fullName)
	for i, e := range m.entities {
		if e.FullName == fullName {
			m.entities = slices.Delete(m.entities, i, i+1)
			return e, nil
		}
	}
	return nil, entities.ErrNotFound
}

// DeleteByID removes the entity whose id equals or uniquely starts with
// idOrPrefix.
func (m *Store) DeleteByID(_ context.Context, idOrPrefix string) (*entities.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, entities.ErrNotFound
	}

	match := -1
	for i, e := range m.entities {
		if e.ID == idOrPrefix {
			match = i
			break
		}
		if strings.HasPrefix(e.ID, idOrPrefix) {
			if match >= 0 {
				return nil, entities.ErrAmbiguousPrefix
			}
			match = i
		}
	}
	if match < 0 {
		return nil, entities.ErrNotFound
	}
	e := m.entities[match]
	m.entities = slices.Delete(m.entities, match, match+1)
	return e, nil
}

// CountEntities returns the number of stored entities.
func (m *Store) CountEntities(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.entities), nil
}

// RunInTx runs fn and restores the previous state when it fails. Nested
// calls join the outer transaction.
func (m *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	m.mu.Lock()
	m.TxCalls++
	entitiesBefore := slices.Clone(m.entities)
	opsBefore := slices.Clone(m.ops)
	filesBefore := make(map[string]entities.FileRecord, len(m.files))
	for k, v := range m.files {
		filesBefore[k] = v
	}
	m.mu.Unlock()

	err := fn(context.WithValue(ctx, txMarker{}, true))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.mu.Lock()
		m.entities = entitiesBefore
		m.ops = opsBefore
		m.files = filesBefore
		m.mu.Unlock()
		return err
	}
	return nil
}

// AppendOperation records one operation.
func (m *Store) AppendOperation(_ context.Context, op *entities.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.Err != nil {
		return m.Err
	}
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = m.tick()
	}
	if op.Files == nil {
		op.Files = []string{}
	}
	c := *op
	m.ops = append(m.ops, &c)
	return nil
}

// QueryOperations returns matching operations, newest first.
func (m *Store) QueryOperations(_ context.Context, filter entities.OperationFilter) ([]*entities.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*entities.Operation
	for i := len(m.ops) - 1; i >= 0; i-- {
		op := m.ops[i]
		if filter.Type != "" && op.OperationType != filter.Type {
			continue
		}
		if filter.Success != nil && op.Success != *filter.Success {
			continue
		}
		if !filter.From.IsZero() && op.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && op.Timestamp.After(filter.To) {
			continue
		}
		c := *op
		result = append(result, &c)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Operations returns every recorded operation, oldest first.
func (m *Store) Operations() []*entities.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// FileRecord returns the stored record for fileID, or nil.
func (m *Store) FileRecord(_ context.Context, fileID string) (*entities.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rec, ok := m.files[fileID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RecordFile upserts the record for rec.FileID.
func (m *Store) RecordFile(_ context.Context, rec *entities.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.RecordFileErr != nil {
		return m.RecordFileErr
	}
	m.files[rec.FileID] = *rec
	return nil
}

// Close marks the store closed.
func (m *Store) Close() error {
	m.Closed = true
	return nil
}
