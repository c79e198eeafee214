package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session is one worker's private view of the store: its own connection,
// its own cipher and a handler bound to them.
type Session struct {
	Handler *ProcessHandler
	Close   func() error
}

// SessionFactory opens a new independent Session.
type SessionFactory func(ctx context.Context) (*Session, error)

// ParallelHandler processes files with N workers. Each worker opens its own
// session and nothing else is shared between workers, so consistency across
// workers rests entirely on the store's transactions. Interactive validation
// is always off.
type ParallelHandler struct {
	factory SessionFactory
	workers int
	logger  *slog.Logger
}

// NewParallelHandler creates a new parallel handler.
func NewParallelHandler(factory SessionFactory, workers int, logger *slog.Logger) *ParallelHandler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParallelHandler{
		factory: factory,
		workers: workers,
		logger:  logger,
	}
}

// HandleFiles distributes files across the workers. Results keep the input
// order; files never started are nil in Files and counted as skipped.
func (h *ParallelHandler) HandleFiles(ctx context.Context, paths []string, opts ProcessOptions, progressFn func(path string)) (*BatchResult, error) {
	start := time.Now()
	opts.SkipValidation = true

	results := make([]*FileResult, len(paths))
	jobs := make(chan int)

	workers := min(h.workers, len(paths))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := range workers {
		g.Go(func() (err error) {
			sess, err := h.factory(gctx)
			if err != nil {
				return fmt.Errorf("opening worker session: %w", err)
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("closing worker session: %w", cerr)
				}
			}()

			for i := range jobs {
				if gctx.Err() != nil {
					return nil
				}
				if progressFn != nil {
					progressFn(paths[i])
				}
				//nolint:loopcall // one document per job
				fr, err := sess.Handler.HandleFile(gctx, paths[i], opts)
				results[i] = fr
				if err != nil {
					h.logger.Warn("file failed", "path", fr.Path, "worker", w, "error", err)
					if opts.StopOnError {
						return fmt.Errorf("processing %s: %w", fr.Path, err)
					}
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	batch := &BatchResult{Files: results, Duration: time.Since(start)}
	for _, fr := range results {
		switch {
		case fr == nil:
			batch.Skipped++
		case fr.Err != nil:
			batch.Failed++
		default:
			batch.Succeeded++
		}
	}

	if len(paths) > 1 {
		h.recordBatch(ctx, paths, batch)
	}
	return batch, waitErr
}

// recordBatch writes the BATCH operation through a fresh session, after
// every worker has closed its own.
func (h *ParallelHandler) recordBatch(ctx context.Context, paths []string, batch *BatchResult) {
	ctx = context.WithoutCancel(ctx)
	sess, err := h.factory(ctx)
	if err != nil {
		h.logger.Error("failed to record batch operation", "error", err)
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			h.logger.Warn("closing session", "error", err)
		}
	}()

	recordBatch(ctx, sess.Handler.audit, h.logger, paths, batch, sess.Handler.processor)
}

// IsCancellation reports whether err is a context cancellation or deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
