package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

// OutputSuffix is appended to the base name of every pseudonymized file.
const OutputSuffix = "_pseudonymized"

// ProcessOptions controls document processing.
type ProcessOptions struct {
	SkipValidation bool
	EntityTypes    []entities.EntityType
	// StopOnError aborts the batch at the first failed document.
	StopOnError bool
	// OutputDir receives the output files. Empty writes next to the input.
	OutputDir string
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path       string
	OutputPath string
	Result     *services.ProcessResult
	Err        error
}

// BatchResult summarises a multi-file run.
type BatchResult struct {
	Files     []*FileResult
	Succeeded int
	Failed    int
	// Skipped counts files never started because of cancellation or
	// StopOnError.
	Skipped  int
	Duration time.Duration
}

// ProcessHandler pseudonymizes plain-text files one after another.
type ProcessHandler struct {
	processor  *services.Processor
	recognizer ports.Recognizer
	audit      ports.AuditLog
	logger     *slog.Logger
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(processor *services.Processor, recognizer ports.Recognizer, audit ports.AuditLog, logger *slog.Logger) *ProcessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessHandler{
		processor:  processor,
		recognizer: recognizer,
		audit:      audit,
		logger:     logger,
	}
}

// HandleFile reads, recognizes and pseudonymizes one file, then writes the
// output file.
func (h *ProcessHandler) HandleFile(ctx context.Context, path string, opts ProcessOptions) (*FileResult, error) {
	fr := &FileResult{Path: path}
	fail := func(err error) (*FileResult, error) {
		fr.Err = err
		return fr, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fail(fmt.Errorf("resolving path: %w", err))
	}
	fr.Path = absPath

	info, err := os.Stat(absPath)
	if err != nil {
		return fail(fmt.Errorf("accessing file: %w", err))
	}
	if info.IsDir() {
		return fail(fmt.Errorf("path is a directory, not a file: %s", absPath))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fail(fmt.Errorf("reading file: %w", err))
	}
	text := string(data)

	spans, err := h.recognizer.Recognize(ctx, absPath, text)
	if err != nil {
		err = fmt.Errorf("recognizing entities: %w", err)
		h.recordRecognitionFailure(ctx, absPath, err)
		return fail(err)
	}

	result, err := h.processor.Process(ctx, services.ProcessRequest{
		DocumentID:     absPath,
		Text:           text,
		ContentHash:    ContentHash(data),
		Spans:          spans,
		SkipValidation: opts.SkipValidation,
		EntityTypes:    opts.EntityTypes,
	})
	fr.Result = result
	if err != nil {
		return fail(err)
	}

	out, err := OutputPath(absPath, opts.OutputDir)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(out, []byte(result.Output), 0600); err != nil {
		return fail(fmt.Errorf("writing output file: %w", err))
	}
	fr.OutputPath = out
	return fr, nil
}

// HandleFiles processes files in order. Cancellation is checked between
// documents; a document already running is left to finish or roll back.
func (h *ProcessHandler) HandleFiles(ctx context.Context, paths []string, opts ProcessOptions, progressFn func(path string)) (*BatchResult, error) {
	start := time.Now()
	batch := &BatchResult{Files: make([]*FileResult, 0, len(paths))}

	var stopErr error
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			stopErr = err
			batch.Skipped = len(paths) - i
			break
		}
		if progressFn != nil {
			progressFn(path)
		}

		//nolint:loopcall // documents are processed one transaction at a time
		fr, err := h.HandleFile(ctx, path, opts)
		batch.Files = append(batch.Files, fr)
		if err != nil {
			batch.Failed++
			h.logger.Warn("file failed", "path", fr.Path, "error", err)
			if opts.StopOnError {
				stopErr = fmt.Errorf("processing %s: %w", fr.Path, err)
				batch.Skipped = len(paths) - i - 1
				break
			}
			continue
		}
		batch.Succeeded++
	}
	batch.Duration = time.Since(start)

	if len(paths) > 1 {
		recordBatch(ctx, h.audit, h.logger, paths, batch, h.processor)
	}
	return batch, stopErr
}

// recordRecognitionFailure appends a failed PROCESS operation for a document
// the processor never saw.
func (h *ProcessHandler) recordRecognitionFailure(ctx context.Context, docID string, cause error) {
	name, version := h.recognizer.ModelInfo()
	err := h.audit.AppendOperation(context.WithoutCancel(ctx), &entities.Operation{
		OperationType: entities.OperationProcess,
		Files:         []string{docID},
		ModelName:     name,
		ModelVersion:  version,
		Success:       false,
		ErrorMessage:  cause.Error(),
	})
	if err != nil {
		h.logger.Error("failed to record failed operation", "document", docID, "error", err)
	}
}

// recordBatch appends the BATCH operation summarising a multi-file run.
func recordBatch(ctx context.Context, audit ports.AuditLog, logger *slog.Logger, paths []string, batch *BatchResult, processor *services.Processor) {
	files := make([]string, 0, len(paths))
	entityCount := 0
	for _, fr := range batch.Files {
		if fr == nil {
			continue
		}
		files = append(files, fr.Path)
		if fr.Result != nil && fr.Err == nil {
			entityCount += fr.Result.UniqueEntities
		}
	}

	op := &entities.Operation{
		OperationType: entities.OperationBatch,
		Files:         files,
		UserModifications: map[string]any{
			"requested": len(paths),
			"succeeded": batch.Succeeded,
			"failed":    batch.Failed,
			"skipped":   batch.Skipped,
		},
		EntityCount:    entityCount,
		ProcessingTime: batch.Duration.Seconds(),
		Success:        batch.Failed == 0 && batch.Skipped == 0,
	}
	if processor != nil {
		op.ModelName, op.ModelVersion = processor.ModelInfo()
		op.ThemeSelected = processor.Theme()
	}
	if !op.Success {
		op.ErrorMessage = fmt.Sprintf("%d failed, %d skipped of %d documents", batch.Failed, batch.Skipped, len(paths))
	}

	if err := audit.AppendOperation(context.WithoutCancel(ctx), op); err != nil {
		logger.Error("failed to record batch operation", "error", err)
	}
}

// ContentHash returns the hex SHA-256 of a document's bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// OutputPath returns where the pseudonymized copy of path is written:
// <name>_pseudonymized<ext>, next to the input or inside outputDir.
func OutputPath(path, outputDir string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	name := base + OutputSuffix + ext

	if outputDir == "" {
		return filepath.Join(filepath.Dir(path), name), nil
	}
	if err := os.MkdirAll(outputDir, 0700); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return filepath.Join(outputDir, name), nil
}

// IsGlobPattern checks if the path contains glob characters.
func IsGlobPattern(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// ExpandPaths resolves glob patterns and drops duplicates and files that are
// themselves pseudonymized outputs or span sidecars.
func ExpandPaths(args []string, skipSuffixes ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		base := filepath.Base(p)
		if strings.Contains(strings.TrimSuffix(base, filepath.Ext(base)), OutputSuffix) {
			return
		}
		for _, s := range skipSuffixes {
			if strings.HasSuffix(base, s) {
				return
			}
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if !IsGlobPattern(arg) {
			add(arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", arg, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no files to process")
	}
	return out, nil
}
