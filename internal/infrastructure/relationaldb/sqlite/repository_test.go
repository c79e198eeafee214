package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
	"github.com/ersonp/pseudo-core/internal/infrastructure/crypto"
)

const testPassphrase = "correct horse battery staple"

func TestMain(m *testing.M) {
	os.Setenv(crypto.InsecureMemoryEnv, "true")
	os.Exit(m.Run())
}

// setupTestRepo creates a file-backed store in a temp dir. Each pooled
// connection to ":memory:" would see its own empty database.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	cfg := config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "mappings.db")}
	repo, err := Create(context.Background(), cfg, testPassphrase, crypto.MinIterations)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, table := range []string{"entities", "operations", "metadata"} {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	for _, key := range []string{metaSalt, metaIterations, metaCanary, metaSchemaVersion, metaCreatedAt} {
		v, err := repo.metadata(ctx, key)
		require.NoError(t, err, key)
		assert.NotEmpty(t, v, key)
	}

	iters, err := repo.metadata(ctx, metaIterations)
	require.NoError(t, err)
	assert.Equal(t, "100000", iters, "creation applies the iteration floor")

	canary, err := repo.metadata(ctx, metaCanary)
	require.NoError(t, err)
	assert.NotContains(t, canary, crypto.CanaryPlaintext)

	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCreate_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		_, err := Create(ctx, config.SQLiteConfig{}, testPassphrase, 0)
		require.Error(t, err)
	})

	t.Run("empty passphrase", func(t *testing.T) {
		_, err := Create(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "s.db")}, "", 0)
		require.Error(t, err)
	})

	t.Run("already initialized", func(t *testing.T) {
		repo := setupTestRepo(t)
		_, err := Create(ctx, config.SQLiteConfig{Path: repo.Path()}, testPassphrase, 0)
		require.ErrorIs(t, err, entities.ErrStoreExists)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	_, err := repo.Save(ctx, &entities.Entity{EntityType: entities.EntityLocation, FullName: "Paris", PseudonymFull: "Valbrune", Theme: entities.ThemeNeutral})
	require.NoError(t, err)
	cfg := config.SQLiteConfig{Path: repo.Path()}

	t.Run("correct passphrase", func(t *testing.T) {
		other, err := Open(ctx, cfg, testPassphrase)
		require.NoError(t, err)
		defer other.Close()

		e, err := other.FindByFullName(ctx, "Paris")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "Valbrune", e.PseudonymFull)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := Open(ctx, cfg, "wrong passphrase")
		require.ErrorIs(t, err, entities.ErrAuthenticationFailure)
		assert.Nil(t, other)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "nope.db")}, testPassphrase)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pseudo init")
	})

	t.Run("missing canary", func(t *testing.T) {
		broken := setupTestRepo(t)
		_, err := broken.db.Exec(`DELETE FROM metadata WHERE key = ?`, metaCanary)
		require.NoError(t, err)

		_, err = Open(ctx, config.SQLiteConfig{Path: broken.Path()}, testPassphrase)
		require.ErrorIs(t, err, entities.ErrCorruptedStore)
	})

	t.Run("unsupported schema version", func(t *testing.T) {
		broken := setupTestRepo(t)
		require.NoError(t, broken.setMetadata(ctx, metaSchemaVersion, "99"))

		_, err := Open(ctx, config.SQLiteConfig{Path: broken.Path()}, testPassphrase)
		require.ErrorIs(t, err, entities.ErrCorruptedStore)
	})
}

func TestRepository_Close_WipesKey(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.cipher.Encrypt("x")
	assert.ErrorIs(t, err, crypto.ErrCipherClosed)
}
