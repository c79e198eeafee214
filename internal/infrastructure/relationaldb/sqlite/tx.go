package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

type txKey struct{}

// txState is the transaction carried in a context. erased is set when the
// transaction deleted entity rows.
type txState struct {
	tx     *sql.Tx
	erased bool
}

// withTx stores a transaction in ctx for downstream store calls.
func withTx(ctx context.Context, st *txState) context.Context {
	if st == nil || st.tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, st)
}

// txFrom extracts the transaction from ctx if present.
func txFrom(ctx context.Context) (*txState, bool) {
	st, ok := ctx.Value(txKey{}).(*txState)
	return st, ok
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the pool.
func (r *Repository) conn(ctx context.Context) querier {
	if st, ok := txFrom(ctx); ok {
		return st.tx
	}
	return r.db
}

// RunInTx runs fn in a write transaction. The DSN opens transactions with
// BEGIN IMMEDIATE, so the write lock is held from the first statement and
// concurrent writers in other processes wait on busy_timeout. A ctx that
// already carries a transaction is passed through and fn joins it.
//
// When the committed transaction deleted entities, the WAL is checkpointed
// and truncated so no frame still holds the erased rows.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", entities.ErrPersistenceFailure, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	st := &txState{tx: tx}
	if err := fn(withTx(ctx, st)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", entities.ErrPersistenceFailure, err)
	}
	if st.erased {
		return r.checkpoint(context.WithoutCancel(ctx))
	}
	return nil
}

// markErased records that the transaction in ctx deleted entity rows.
func markErased(ctx context.Context) {
	if st, ok := txFrom(ctx); ok {
		st.erased = true
	}
}

// checkpoint copies every WAL frame into the database and truncates the WAL
// file. With secure_delete on, the database pages then hold zeros where the
// deleted rows were.
func (r *Repository) checkpoint(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	err := r.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("%w: checkpointing wal: %v", entities.ErrPersistenceFailure, err)
	}
	if busy != 0 {
		// The rows are committed; the next checkpoint truncates the WAL.
		r.logger.Warn("wal checkpoint blocked by an open reader", "frames", logFrames, "checkpointed", checkpointed)
		return nil
	}
	r.logger.Debug("wal truncated after erasure", "frames", logFrames)
	return nil
}
