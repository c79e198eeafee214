package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

const entityColumns = `id, entity_type, full_name, first_name, last_name,
	pseudonym_full, pseudonym_first, pseudonym_last, theme, gender,
	confidence, is_ambiguous, ambiguity_reason, first_seen`

// sealedEntity holds the encrypted form of the identifying fields.
type sealedEntity struct {
	fullName, firstName, lastName       string
	pseudoFull, pseudoFirst, pseudoLast string
	ambiguityReason                     string
}

func (r *Repository) seal(e *entities.Entity) (*sealedEntity, error) {
	plain := []string{
		e.FullName, e.FirstName, e.LastName,
		e.PseudonymFull, e.PseudonymFirst, e.PseudonymLast,
		e.AmbiguityReason,
	}
	out := make([]string, len(plain))
	for i, p := range plain {
		ct, err := r.cipher.Encrypt(p)
		if err != nil {
			return nil, fmt.Errorf("encrypting entity field: %w", err)
		}
		out[i] = ct
	}
	return &sealedEntity{
		fullName: out[0], firstName: out[1], lastName: out[2],
		pseudoFull: out[3], pseudoFirst: out[4], pseudoLast: out[5],
		ambiguityReason: out[6],
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one row and decrypts it. A row that does not open under
// the store key is reported as corruption.
func (r *Repository) scanEntity(row rowScanner) (*entities.Entity, error) {
	var (
		e           entities.Entity
		s           sealedEntity
		entityType  string
		theme       string
		gender      string
		isAmbiguous int
		firstSeen   int64
	)
	if err := row.Scan(
		&e.ID, &entityType,
		&s.fullName, &s.firstName, &s.lastName,
		&s.pseudoFull, &s.pseudoFirst, &s.pseudoLast,
		&theme, &gender, &e.Confidence, &isAmbiguous,
		&s.ambiguityReason, &firstSeen,
	); err != nil {
		return nil, err
	}

	targets := []struct {
		ct  string
		dst *string
	}{
		{s.fullName, &e.FullName},
		{s.firstName, &e.FirstName},
		{s.lastName, &e.LastName},
		{s.pseudoFull, &e.PseudonymFull},
		{s.pseudoFirst, &e.PseudonymFirst},
		{s.pseudoLast, &e.PseudonymLast},
		{s.ambiguityReason, &e.AmbiguityReason},
	}
	for _, t := range targets {
		p, err := r.cipher.Decrypt(t.ct)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %s: %v", entities.ErrCorruptedStore, e.ID, err)
		}
		*t.dst = p
	}

	e.EntityType = entities.EntityType(entityType)
	e.Theme = entities.Theme(theme)
	e.Gender = entities.Gender(gender)
	e.IsAmbiguous = isAmbiguous != 0
	e.FirstSeen = time.Unix(0, firstSeen).UTC()
	return &e, nil
}

func (r *Repository) queryEntities(ctx context.Context, query string, args ...any) ([]*entities.Entity, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var result []*entities.Entity
	for rows.Next() {
		e, err := r.scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *Repository) queryEntity(ctx context.Context, query string, args ...any) (*entities.Entity, error) {
	e, err := r.scanEntity(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return e, nil
}

// FindByFullName finds an entity by its exact normalized full name.
func (r *Repository) FindByFullName(ctx context.Context, fullName string) (*entities.Entity, error) {
	fullName = entities.NormalizeName(fullName)
	if fullName == "" {
		return nil, nil
	}
	ct, err := r.cipher.Encrypt(fullName)
	if err != nil {
		return nil, err
	}
	return r.queryEntity(ctx, `SELECT `+entityColumns+` FROM entities WHERE full_name = ?`, ct)
}

// FindByComponent finds PERSON entities whose first or last name component
// equals value, oldest first.
func (r *Repository) FindByComponent(ctx context.Context, value string, kind entities.ComponentKind) ([]*entities.Entity, error) {
	var column string
	switch kind {
	case entities.ComponentFirstName:
		column = "first_name"
	case entities.ComponentLastName:
		column = "last_name"
	default:
		return nil, fmt.Errorf("unsupported component kind %q", kind)
	}

	value = entities.NormalizeName(value)
	if value == "" {
		return nil, nil
	}
	ct, err := r.cipher.Encrypt(value)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE entity_type = ? AND ` + column + ` = ?
		ORDER BY first_seen ASC, rowid ASC`
	return r.queryEntities(ctx, query, string(entities.EntityPerson), ct)
}

// PseudonymComponentInUse reports whether value is already assigned as a
// pseudonym of the given kind by any entity.
func (r *Repository) PseudonymComponentInUse(ctx context.Context, value string, kind entities.ComponentKind) (bool, error) {
	var column string
	switch kind {
	case entities.ComponentFirstName:
		column = "pseudonym_first"
	case entities.ComponentLastName:
		column = "pseudonym_last"
	case entities.ComponentFull:
		column = "pseudonym_full"
	default:
		return false, fmt.Errorf("unsupported component kind %q", kind)
	}

	ct, err := r.cipher.Encrypt(entities.NormalizeName(value))
	if err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM entities WHERE ` + column + ` = ?)`
	if err := r.conn(ctx).QueryRowContext(ctx, query, ct).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking pseudonym use: %w", err)
	}
	return exists, nil
}

// Save inserts the entity. On a full-name collision the stored row wins and
// is returned with Outcome AlreadyExists. This is atomic: it uses
// INSERT ... ON CONFLICT DO NOTHING followed by a SELECT.
func (r *Repository) Save(ctx context.Context, entity *entities.Entity) (entities.SaveResult, error) {
	entity.FullName = entities.NormalizeName(entity.FullName)
	if entity.FullName == "" {
		return entities.SaveResult{}, errors.New("entity full name is required")
	}
	if entity.ID == "" {
		entity.ID = generateUUID()
	}
	if entity.FirstSeen.IsZero() {
		entity.FirstSeen = timeNow().UTC()
	}

	s, err := r.seal(entity)
	if err != nil {
		return entities.SaveResult{}, err
	}

	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO NOTHING
	`
	res, err := r.conn(ctx).ExecContext(ctx, query,
		entity.ID, string(entity.EntityType),
		s.fullName, s.firstName, s.lastName,
		s.pseudoFull, s.pseudoFirst, s.pseudoLast,
		string(entity.Theme), string(entity.Gender), entity.Confidence,
		boolToInt(entity.IsAmbiguous), s.ambiguityReason,
		entity.FirstSeen.UnixNano(),
	)
	if err != nil {
		return entities.SaveResult{}, fmt.Errorf("%w: inserting entity: %v", entities.ErrPersistenceFailure, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return entities.SaveResult{}, fmt.Errorf("%w: reading insert result: %v", entities.ErrPersistenceFailure, err)
	}
	if n == 1 {
		return entities.SaveResult{Outcome: entities.Inserted, Entity: entity}, nil
	}

	existing, err := r.FindByFullName(ctx, entity.FullName)
	if err != nil {
		return entities.SaveResult{}, err
	}
	if existing == nil {
		return entities.SaveResult{}, fmt.Errorf("%w: conflicting row vanished", entities.ErrPersistenceFailure)
	}
	return entities.SaveResult{Outcome: entities.AlreadyExists, Entity: existing}, nil
}

// SaveBatch inserts every entity in one transaction. Any failure, including
// a full name that already exists, rolls the whole batch back.
func (r *Repository) SaveBatch(ctx context.Context, batch []*entities.Entity) ([]*entities.Entity, error) {
	saved := make([]*entities.Entity, 0, len(batch))
	err := r.RunInTx(ctx, func(ctx context.Context) error {
		for i, e := range batch {
			//nolint:loopcall // one prepared insert per row inside a single transaction
			res, err := r.Save(ctx, e)
			if err != nil {
				return err
			}
			if res.Outcome == entities.AlreadyExists {
				return fmt.Errorf("%w: batch item %d duplicates entity %s", entities.ErrPersistenceFailure, i, res.Entity.ID)
			}
			saved = append(saved, res.Entity)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, entities.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", entities.ErrPersistenceFailure, err)
		}
		return nil, err
	}
	return saved, nil
}

// FindAll lists entities matching the filter, oldest first.
func (r *Repository) FindAll(ctx context.Context, filter entities.EntityFilter) ([]*entities.Entity, error) {
	var (
		where []string
		args  []any
	)
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.Theme != "" {
		where = append(where, "theme = ?")
		args = append(args, string(filter.Theme))
	}
	if filter.AmbiguousOnly {
		where = append(where, "is_ambiguous = 1")
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + entityColumns + ` FROM entities`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY first_seen ASC, rowid ASC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return r.queryEntities(ctx, b.String(), args...)
}

// SearchEntities decrypts candidate rows and matches query as a
// case-insensitive substring of the real or pseudonym full name. Substring
// matching cannot be pushed down to deterministic ciphertext.
func (r *Repository) SearchEntities(ctx context.Context, query string, entityType entities.EntityType) ([]*entities.Entity, error) {
	candidates, err := r.FindAll(ctx, entities.EntityFilter{EntityType: entityType})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(entities.NormalizeName(query))
	if needle == "" {
		return candidates, nil
	}

	result := make([]*entities.Entity, 0, len(candidates))
	for _, e := range candidates {
		if strings.Contains(strings.ToLower(e.FullName), needle) ||
			strings.Contains(strings.ToLower(e.PseudonymFull), needle) {
			result = append(result, e)
		}
	}
	return result, nil
}

// DeleteByFullName removes an entity and returns its pre-delete snapshot.
func (r *Repository) DeleteByFullName(ctx context.Context, fullName string) (*entities.Entity, error) {
	var snapshot *entities.Entity
	err := r.RunInTx(ctx, func(ctx context.Context) error {
		e, err := r.FindByFullName(ctx, fullName)
		if err != nil {
			return err
		}
		if e == nil {
			return entities.ErrNotFound
		}
		if err := r.deleteRow(ctx, e.ID); err != nil {
			return err
		}
		snapshot = e
		return nil
	})
	return snapshot, err
}

// DeleteByID removes the entity whose id equals idOrPrefix or is the only id
// starting with it, and returns its pre-delete snapshot.
func (r *Repository) DeleteByID(ctx context.Context, idOrPrefix string) (*entities.Entity, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, entities.ErrNotFound
	}

	var snapshot *entities.Entity
	err := r.RunInTx(ctx, func(ctx context.Context) error {
		e, err := r.findByIDOrPrefix(ctx, idOrPrefix)
		if err != nil {
			return err
		}
		if err := r.deleteRow(ctx, e.ID); err != nil {
			return err
		}
		snapshot = e
		return nil
	})
	return snapshot, err
}

// FindByIDOrPrefix resolves an exact id or a unique id prefix.
func (r *Repository) FindByIDOrPrefix(ctx context.Context, idOrPrefix string) (*entities.Entity, error) {
	return r.findByIDOrPrefix(ctx, strings.TrimSpace(idOrPrefix))
}

func (r *Repository) findByIDOrPrefix(ctx context.Context, idOrPrefix string) (*entities.Entity, error) {
	if idOrPrefix == "" {
		return nil, entities.ErrNotFound
	}

	e, err := r.queryEntity(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, idOrPrefix)
	if err != nil {
		return nil, err
	}
	if e != nil {
		return e, nil
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE id LIKE ? ESCAPE '\' LIMIT 2`
	matches, err := r.queryEntities(ctx, query, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, entities.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, entities.ErrAmbiguousPrefix
	}
}

func (r *Repository) deleteRow(ctx context.Context, id string) error {
	if _, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting entity: %v", entities.ErrPersistenceFailure, err)
	}
	markErased(ctx)
	return nil
}

// CountEntities returns the number of stored entities.
func (r *Repository) CountEntities(ctx context.Context) (int, error) {
	var count int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
