// Package sqlite provides the encrypted SQLite mapping store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
	"github.com/ersonp/pseudo-core/internal/infrastructure/crypto"
)

// SchemaVersion is written at creation and checked on open.
const SchemaVersion = "1"

// Metadata keys.
const (
	metaSalt          = "salt"
	metaIterations    = "kdf_iterations"
	metaCanary        = "canary"
	metaSchemaVersion = "schema_version"
	metaCreatedAt     = "created_at"
	metaFilePrefix    = "file:"
)

// dsnParams are applied by the driver to every pooled connection.
// secure_delete zeroes deleted cells and freed pages.
const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=secure_delete(on)&_txlock=immediate"

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.Store on one SQLite file. Identifying columns
// are sealed with a deterministic cipher, so equality lookups compare
// ciphertext and never decrypt the table.
type Repository struct {
	db     *sql.DB
	path   string
	cipher *crypto.Cipher
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	return db, nil
}

// Create initialises a new store: schema, random salt, KDF parameters and
// the encrypted canary. It fails with entities.ErrStoreExists when the file
// already holds a store.
func Create(ctx context.Context, cfg config.SQLiteConfig, passphrase string, iterations int, opts ...Option) (*Repository, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := openDB(cfg.Path)
	if err != nil {
		return nil, err
	}

	r := &Repository{db: db, path: cfg.Path, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := r.metadata(ctx, metaCanary); err == nil {
		db.Close()
		return nil, entities.ErrStoreExists
	} else if !errors.Is(err, entities.ErrCorruptedStore) {
		db.Close()
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		db.Close()
		return nil, err
	}
	iterations = crypto.EffectiveIterations(iterations)

	c, err := crypto.NewCipherFromPassphrase(passphrase, salt, iterations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	r.cipher = c

	canary, err := c.Encrypt(crypto.CanaryPlaintext)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("encrypting canary: %w", err)
	}

	err = r.RunInTx(ctx, func(ctx context.Context) error {
		rows := [][2]string{
			{metaSalt, base64.StdEncoding.EncodeToString(salt)},
			{metaIterations, strconv.Itoa(iterations)},
			{metaCanary, canary},
			{metaSchemaVersion, SchemaVersion},
			{metaCreatedAt, timeNow().UTC().Format(time.RFC3339)},
		}
		for _, kv := range rows {
			if err := r.setMetadata(ctx, kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.Close()
		return nil, err
	}

	if err := os.Chmod(cfg.Path, 0600); err != nil {
		r.logger.Warn("could not restrict store permissions", "error", err)
	}

	r.logger.Info("store created", "schema_version", SchemaVersion, "kdf_iterations", iterations)
	return r, nil
}

// Open opens an existing store and verifies the passphrase against the
// canary before any entity query is possible.
func Open(ctx context.Context, cfg config.SQLiteConfig, passphrase string, opts ...Option) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store not found: %s (run 'pseudo init' first)", cfg.Path)
		}
		return nil, fmt.Errorf("checking store file: %w", err)
	}

	db, err := openDB(cfg.Path)
	if err != nil {
		return nil, err
	}

	r := &Repository{db: db, path: cfg.Path, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}

	c, err := r.unlock(ctx, passphrase)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.cipher = c
	return r, nil
}

// unlock reads the key parameters, derives the cipher and checks the canary.
func (r *Repository) unlock(ctx context.Context, passphrase string) (*crypto.Cipher, error) {
	version, err := r.metadata(ctx, metaSchemaVersion)
	if err != nil {
		return nil, err
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %q", entities.ErrCorruptedStore, version)
	}

	saltB64, err := r.metadata(ctx, metaSalt)
	if err != nil {
		return nil, err
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: unreadable salt", entities.ErrCorruptedStore)
	}

	itersRaw, err := r.metadata(ctx, metaIterations)
	if err != nil {
		return nil, err
	}
	iterations, err := strconv.Atoi(itersRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable kdf iterations", entities.ErrCorruptedStore)
	}

	canary, err := r.metadata(ctx, metaCanary)
	if err != nil {
		return nil, err
	}

	c, err := crypto.NewCipherFromPassphrase(passphrase, salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrCorruptedStore, err)
	}
	if err := c.VerifyCanary(canary); err != nil {
		c.Destroy()
		return nil, entities.ErrAuthenticationFailure
	}
	return c, nil
}

// Close wipes the key and closes the database connection.
func (r *Repository) Close() error {
	if r.cipher != nil {
		r.cipher.Destroy()
	}
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Real-to-pseudonym mappings. Identifying columns hold deterministic ciphertext.
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		full_name TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		pseudonym_full TEXT NOT NULL,
		pseudonym_first TEXT NOT NULL,
		pseudonym_last TEXT NOT NULL,
		theme TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		is_ambiguous INTEGER NOT NULL DEFAULT 0,
		ambiguity_reason TEXT NOT NULL,
		first_seen INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entities_first_name ON entities(first_name);
	CREATE INDEX IF NOT EXISTS idx_entities_last_name ON entities(last_name);
	CREATE INDEX IF NOT EXISTS idx_entities_pseudonym_full ON entities(pseudonym_full);
	CREATE INDEX IF NOT EXISTS idx_entities_pseudonym_first ON entities(pseudonym_first);
	CREATE INDEX IF NOT EXISTS idx_entities_pseudonym_last ON entities(pseudonym_last);
	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);

	-- Append-only operation log. Never holds document text.
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		operation_type TEXT NOT NULL,
		files TEXT NOT NULL,
		user_modifications TEXT,
		model_name TEXT NOT NULL DEFAULT '',
		model_version TEXT NOT NULL DEFAULT '',
		theme_selected TEXT NOT NULL DEFAULT '',
		entity_count INTEGER NOT NULL DEFAULT 0,
		processing_time REAL NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_operations_timestamp ON operations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_operations_type ON operations(operation_type);

	CREATE TRIGGER IF NOT EXISTS operations_no_update BEFORE UPDATE ON operations
	BEGIN
		SELECT RAISE(ABORT, 'operations are append-only');
	END;
	CREATE TRIGGER IF NOT EXISTS operations_no_delete BEFORE DELETE ON operations
	BEGIN
		SELECT RAISE(ABORT, 'operations are append-only');
	END;

	-- Key parameters, canary and per-file bookkeeping.
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// metadata returns a required metadata value. A missing row is
// entities.ErrCorruptedStore.
func (r *Repository) metadata(ctx context.Context, key string) (string, error) {
	var value string
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: missing metadata %q", entities.ErrCorruptedStore, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading metadata %q: %w", key, err)
	}
	return value, nil
}

func (r *Repository) setMetadata(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.conn(ctx).ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: writing metadata: %v", entities.ErrPersistenceFailure, err)
	}
	return nil
}
