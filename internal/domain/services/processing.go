package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/metrics"
)

var tracer = otel.Tracer("pseudo-core/services")

// ProcessRequest is one document's detected spans.
type ProcessRequest struct {
	// DocumentID identifies the document in the audit log and metadata.
	DocumentID  string
	Text        string
	ContentHash string
	Spans       []entities.DetectedSpan

	SkipValidation bool
	// EntityTypes restricts which spans are pseudonymized. Empty means all.
	EntityTypes []entities.EntityType
}

// ProcessResult summarises one document run.
type ProcessResult struct {
	Success           bool
	EntitiesDetected  int
	UniqueEntities    int
	EntitiesNew       int
	EntitiesReused    int
	AmbiguousEntities int
	ProcessingTime    time.Duration
	// Output is the document text with every span replaced by its pseudonym.
	Output string
	// AlreadyProcessed is set when the same content was committed before.
	AlreadyProcessed bool
	Error            string
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	ModelName    string
	ModelVersion string
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Processor runs the assignment pass for whole documents. A document's
// entities, its PROCESS record and its file bookkeeping commit together or
// not at all.
type Processor struct {
	store     ports.Store
	engine    *AssignmentEngine
	validator ports.Validator
	opts      ProcessorOptions
	logger    *slog.Logger
}

// NewProcessor creates a new Processor. validator may be nil when every
// request skips validation.
func NewProcessor(store ports.Store, engine *AssignmentEngine, validator ports.Validator, opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		engine:    engine,
		validator: validator,
		opts:      opts,
		logger:    logger,
	}
}

// ModelInfo returns the recognizer model recorded on operations.
func (p *Processor) ModelInfo() (name, version string) {
	return p.opts.ModelName, p.opts.ModelVersion
}

// Theme returns the pseudonym theme of the underlying engine.
func (p *Processor) Theme() entities.Theme {
	return p.engine.Theme()
}

// Process pseudonymizes one document. A failed run returns a result with
// Success false together with the error, after recording a failed PROCESS
// operation.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pseudo.Process")
	defer span.End()

	result := &ProcessResult{}
	fail := func(err error) (*ProcessResult, error) {
		result.Success = false
		result.Error = err.Error()
		result.ProcessingTime = time.Since(start)
		p.recordFailure(ctx, req, result)
		p.opts.Metrics.ObserveDocument(false, result.ProcessingTime)
		span.RecordError(err)
		span.SetStatus(codes.Error, "document processing failed")
		return result, err
	}

	if req.DocumentID == "" {
		return fail(errors.New("document id is required"))
	}

	prior, err := p.store.FileRecord(ctx, req.DocumentID)
	if err != nil {
		return fail(fmt.Errorf("reading file record: %w", err))
	}
	result.AlreadyProcessed = prior != nil && req.ContentHash != "" && prior.ContentHash == req.ContentHash

	spans := filterSpans(req.Spans, req.EntityTypes)

	var mods map[string]any
	if !req.SkipValidation && p.validator != nil {
		vr, err := p.validator.Validate(ctx, req.DocumentID, req.Text, spans)
		if err != nil {
			return fail(fmt.Errorf("validating spans: %w", err))
		}
		spans = filterSpans(vr.Spans, req.EntityTypes)
		mods = map[string]any{
			"accepted": vr.Accepted,
			"rejected": vr.Rejected,
			"edited":   vr.Edited,
		}
		p.opts.Metrics.AddValidationRejected(vr.Rejected)

		if err := p.store.AppendOperation(ctx, &entities.Operation{
			OperationType:     entities.OperationValidate,
			Files:             []string{req.DocumentID},
			UserModifications: mods,
			EntityCount:       len(spans),
			Success:           true,
		}); err != nil {
			return fail(fmt.Errorf("recording validation: %w", err))
		}
	}
	result.EntitiesDetected = len(spans)

	mentions := collectMentions(spans)
	result.UniqueEntities = len(mentions)
	if err := p.preclassify(ctx, mentions); err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.Int("pseudo.spans", result.EntitiesDetected),
		attribute.Int("pseudo.unique_entities", result.UniqueEntities),
	)

	assigned := make(map[string]*entities.Entity, len(mentions))
	err = p.store.RunInTx(ctx, func(ctx context.Context) error {
		result.EntitiesNew, result.EntitiesReused, result.AmbiguousEntities = 0, 0, 0
		for _, m := range mentions {
			//nolint:loopcall // each assignment depends on the rows the previous one wrote
			a, err := p.engine.Assign(ctx, m)
			if err != nil {
				return fmt.Errorf("assigning %s mention: %w", m.EntityType, err)
			}
			assigned[mentionKey(m.EntityType, m.Text)] = a.Entity
			if a.Outcome == entities.OutcomeNew {
				result.EntitiesNew++
				if a.Entity.IsAmbiguous {
					result.AmbiguousEntities++
				}
			} else {
				result.EntitiesReused++
			}
		}

		if err := p.store.AppendOperation(ctx, &entities.Operation{
			OperationType:     entities.OperationProcess,
			Files:             []string{req.DocumentID},
			UserModifications: mods,
			ModelName:         p.opts.ModelName,
			ModelVersion:      p.opts.ModelVersion,
			ThemeSelected:     p.engine.Theme(),
			EntityCount:       len(mentions),
			ProcessingTime:    time.Since(start).Seconds(),
			Success:           true,
		}); err != nil {
			return fmt.Errorf("recording operation: %w", err)
		}

		return p.store.RecordFile(ctx, &entities.FileRecord{
			FileID:      req.DocumentID,
			ContentHash: req.ContentHash,
			ProcessedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		result.EntitiesNew, result.EntitiesReused, result.AmbiguousEntities = 0, 0, 0
		return fail(err)
	}

	output, skipped := ReplaceSpans(req.Text, spans, func(s entities.DetectedSpan) (string, bool) {
		e, ok := assigned[mentionKey(s.EntityType, s.Text)]
		if !ok {
			return "", false
		}
		return e.PseudonymFull, true
	})
	if skipped > 0 {
		p.logger.Warn("spans left unreplaced", "document", req.DocumentID, "count", skipped)
	}

	result.Output = output
	result.Success = true
	result.ProcessingTime = time.Since(start)
	p.opts.Metrics.ObserveDocument(true, result.ProcessingTime)
	span.SetStatus(codes.Ok, "")

	p.logger.Info("document processed",
		"document", req.DocumentID,
		"detected", result.EntitiesDetected,
		"new", result.EntitiesNew,
		"reused", result.EntitiesReused,
		"ambiguous", result.AmbiguousEntities,
		"already_processed", result.AlreadyProcessed,
		"duration", result.ProcessingTime,
	)
	return result, nil
}

// recordFailure appends the failed PROCESS record outside the rolled-back
// transaction. The error text carries no names.
func (p *Processor) recordFailure(ctx context.Context, req ProcessRequest, result *ProcessResult) {
	ctx = context.WithoutCancel(ctx)
	files := []string{}
	if req.DocumentID != "" {
		files = []string{req.DocumentID}
	}
	err := p.store.AppendOperation(ctx, &entities.Operation{
		OperationType:  entities.OperationProcess,
		Files:          files,
		ModelName:      p.opts.ModelName,
		ModelVersion:   p.opts.ModelVersion,
		ThemeSelected:  p.engine.Theme(),
		ProcessingTime: result.ProcessingTime.Seconds(),
		Success:        false,
		ErrorMessage:   result.Error,
	})
	if err != nil {
		p.logger.Error("failed to record failed operation", "document", req.DocumentID, "error", err)
	}
	p.logger.Warn("document failed", "document", req.DocumentID, "error", result.Error)
}

// preclassify resolves the gender of PERSON first tokens before the write
// transaction opens, so a slow classifier never holds the store lock.
func (p *Processor) preclassify(ctx context.Context, mentions []entities.Mention) error {
	cache := make(map[string]entities.Gender)
	for i := range mentions {
		m := &mentions[i]
		if m.EntityType != entities.EntityPerson || m.GenderHint.IsKnown() {
			continue
		}
		tokens := NameTokens(m.Text)
		if len(tokens) == 0 {
			continue
		}
		g, ok := cache[tokens[0]]
		if !ok {
			//nolint:loopcall // classifier takes one name per call
			gender, err := p.engine.classifyName(ctx, tokens[0])
			if err != nil {
				return fmt.Errorf("classifying gender: %w", err)
			}
			g = gender
			cache[tokens[0]] = g
		}
		m.TokenGender = g
	}
	return nil
}

// filterSpans keeps spans of the requested types with non-empty text.
func filterSpans(spans []entities.DetectedSpan, types []entities.EntityType) []entities.DetectedSpan {
	allowed := make(map[entities.EntityType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	out := make([]entities.DetectedSpan, 0, len(spans))
	for _, s := range spans {
		if entities.NormalizeName(s.Text) == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[s.EntityType] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// collectMentions folds spans into distinct mentions in order of first
// appearance.
func collectMentions(spans []entities.DetectedSpan) []entities.Mention {
	index := make(map[string]int)
	var mentions []entities.Mention
	for _, s := range spans {
		key := mentionKey(s.EntityType, s.Text)
		if i, ok := index[key]; ok {
			m := &mentions[i]
			if s.Confidence > m.Confidence {
				m.Confidence = s.Confidence
			}
			if !m.GenderHint.IsKnown() && s.GenderHint.IsKnown() {
				m.GenderHint = s.GenderHint
			}
			continue
		}
		index[key] = len(mentions)
		mentions = append(mentions, entities.Mention{
			Text:       entities.NormalizeName(s.Text),
			EntityType: s.EntityType,
			GenderHint: s.GenderHint,
			Confidence: s.Confidence,
		})
	}
	return mentions
}
