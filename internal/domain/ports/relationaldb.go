package ports

import (
	"context"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

// MappingStore defines the encrypted real-to-pseudonym mapping operations.
// Implementations encrypt every identifying field deterministically, so the
// equality lookups below run against ciphertext.
//
// Lookups that find nothing return (nil, nil); Delete* return
// entities.ErrNotFound.
type MappingStore interface {
	// FindByFullName finds an entity by its exact normalized full name.
	FindByFullName(ctx context.Context, fullName string) (*entities.Entity, error)

	// FindByComponent finds PERSON entities whose first or last name equals
	// value, oldest first.
	FindByComponent(ctx context.Context, value string, kind entities.ComponentKind) ([]*entities.Entity, error)

	// PseudonymComponentInUse reports whether value is already assigned as a
	// pseudonym component of the given kind.
	PseudonymComponentInUse(ctx context.Context, value string, kind entities.ComponentKind) (bool, error)

	// Save inserts the entity. A full-name collision is not an error: the
	// stored row is returned with Outcome AlreadyExists.
	Save(ctx context.Context, entity *entities.Entity) (entities.SaveResult, error)

	// SaveBatch inserts all entities or none.
	SaveBatch(ctx context.Context, batch []*entities.Entity) ([]*entities.Entity, error)

	// FindAll lists entities matching the filter, oldest first.
	FindAll(ctx context.Context, filter entities.EntityFilter) ([]*entities.Entity, error)

	// SearchEntities matches query as a case-insensitive substring of the
	// real or pseudonym full name. An empty query matches everything.
	SearchEntities(ctx context.Context, query string, entityType entities.EntityType) ([]*entities.Entity, error)

	// DeleteByFullName removes an entity and returns its pre-delete snapshot.
	DeleteByFullName(ctx context.Context, fullName string) (*entities.Entity, error)

	// DeleteByID removes the entity whose id equals or uniquely starts with
	// idOrPrefix and returns its pre-delete snapshot.
	DeleteByID(ctx context.Context, idOrPrefix string) (*entities.Entity, error)

	// CountEntities returns the number of stored entities.
	CountEntities(ctx context.Context) (int, error)

	// RunInTx runs fn inside a write transaction. Store calls made with the
	// context passed to fn join that transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditLog is the append-only operation log.
type AuditLog interface {
	// AppendOperation records one operation. ID and Timestamp are filled when empty.
	AppendOperation(ctx context.Context, op *entities.Operation) error

	// QueryOperations returns matching operations, newest first.
	QueryOperations(ctx context.Context, filter entities.OperationFilter) ([]*entities.Operation, error)
}

// MetadataStore keeps per-file bookkeeping used to detect reprocessing.
type MetadataStore interface {
	// FileRecord returns the stored record for fileID, or nil.
	FileRecord(ctx context.Context, fileID string) (*entities.FileRecord, error)

	// RecordFile upserts the record for rec.FileID.
	RecordFile(ctx context.Context, rec *entities.FileRecord) error
}

// Store is one open session on an encrypted mapping store.
type Store interface {
	MappingStore
	AuditLog
	MetadataStore

	// Close wipes key material and closes the connection.
	Close() error
}
