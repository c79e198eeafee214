// Package services contains domain business logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/metrics"
)

// Ambiguity reasons. They describe structure only and never carry names.
const (
	reasonCompoundName     = "more than two name tokens; split after the first token"
	reasonTokenBothKinds   = "single token matches both a stored first name and a stored last name"
	reasonTokenAsGivenName = "single token resolved as a given name"
	reasonComponentSplit   = "stored entities disagree on the pseudonym for a shared component"
	reasonPoolExhausted    = "pseudonym pool exhausted"
)

// maxVariantGeneration bounds numbered-variant generation after exhaustion.
const maxVariantGeneration = 50

// AssignmentOptions configures an AssignmentEngine.
type AssignmentOptions struct {
	Theme   entities.Theme
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// AssignmentEngine maps detected mentions to stable pseudonyms. All
// consistency state lives in the store: the engine holds no cache, so any
// number of engines on the same store agree.
type AssignmentEngine struct {
	store   ports.MappingStore
	library ports.PseudonymLibrary
	gender  ports.GenderClassifier
	theme   entities.Theme
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAssignmentEngine creates a new AssignmentEngine.
func NewAssignmentEngine(store ports.MappingStore, library ports.PseudonymLibrary, gender ports.GenderClassifier, opts AssignmentOptions) *AssignmentEngine {
	theme := opts.Theme
	if theme == "" {
		theme = entities.ThemeNeutral
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentEngine{
		store:   store,
		library: library,
		gender:  gender,
		theme:   theme,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Theme returns the theme new pseudonyms are drawn from.
func (e *AssignmentEngine) Theme() entities.Theme {
	return e.theme
}

// ambiguity collects reasons while one entity is being built.
type ambiguity []string

func (a *ambiguity) add(reason string) {
	for _, r := range *a {
		if r == reason {
			return
		}
	}
	*a = append(*a, reason)
}

func (a ambiguity) apply(e *entities.Entity) {
	if len(a) > 0 {
		e.IsAmbiguous = true
		e.AmbiguityReason = strings.Join(a, "; ")
	}
}

// Assign resolves one mention. Callers that need all-or-nothing semantics
// for a document run Assign inside MappingStore.RunInTx.
func (e *AssignmentEngine) Assign(ctx context.Context, m entities.Mention) (*entities.Assignment, error) {
	text := entities.NormalizeName(m.Text)
	if text == "" {
		return nil, errors.New("empty mention")
	}

	existing, err := e.store.FindByFullName(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("looking up full name: %w", err)
	}
	if existing != nil {
		return e.done(existing, entities.OutcomeReused), nil
	}

	var candidate *entities.Entity
	switch m.EntityType {
	case entities.EntityPerson:
		candidate, err = e.buildPerson(ctx, text, m)
	case entities.EntityLocation, entities.EntityOrganization:
		candidate, err = e.buildSingle(ctx, text, m)
	default:
		return nil, fmt.Errorf("unsupported entity type %q", m.EntityType)
	}
	if err != nil {
		return nil, err
	}

	res, err := e.store.Save(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("saving entity: %w", err)
	}
	if res.Outcome == entities.AlreadyExists {
		e.logger.Debug("adopted concurrently stored entity", "entity_id", res.Entity.ID)
		return e.done(res.Entity, entities.OutcomeReused), nil
	}

	if res.Entity.IsAmbiguous {
		e.metrics.IncrementAmbiguous(string(res.Entity.EntityType))
		e.logger.Info("entity flagged for review", "entity_id", res.Entity.ID, "entity_type", res.Entity.EntityType)
	}
	return e.done(res.Entity, entities.OutcomeNew), nil
}

func (e *AssignmentEngine) done(ent *entities.Entity, outcome entities.AssignmentOutcome) *entities.Assignment {
	e.metrics.IncrementAssignment(string(ent.EntityType), string(outcome))
	return &entities.Assignment{Entity: ent, Outcome: outcome}
}

// buildSingle draws one pooled value for a LOCATION or ORG.
func (e *AssignmentEngine) buildSingle(ctx context.Context, text string, m entities.Mention) (*entities.Entity, error) {
	var amb ambiguity
	pseudo, err := e.drawUnique(ctx, text, entities.ComponentFull, entities.CategoryFor(m.EntityType), entities.GenderNone, &amb)
	if err != nil {
		return nil, err
	}

	ent := &entities.Entity{
		EntityType:    m.EntityType,
		FullName:      text,
		PseudonymFull: pseudo,
		Theme:         e.theme,
		Gender:        entities.GenderNone,
		Confidence:    m.Confidence,
	}
	amb.apply(ent)
	return ent, nil
}

// buildPerson resolves each name component independently: a component
// already known to the store keeps its pseudonym, a new one gets a fresh
// pseudonym that no other real component of the same kind holds.
func (e *AssignmentEngine) buildPerson(ctx context.Context, text string, m entities.Mention) (*entities.Entity, error) {
	var amb ambiguity

	first, last, err := e.splitName(ctx, text, m, &amb)
	if err != nil {
		return nil, err
	}

	ent := &entities.Entity{
		EntityType: entities.EntityPerson,
		FullName:   text,
		FirstName:  first,
		LastName:   last,
		Theme:      e.theme,
		Confidence: m.Confidence,
	}

	if first != "" {
		pseudo, owner, err := e.reuseComponent(ctx, first, entities.ComponentFirstName, &amb)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.Gender != entities.GenderNone {
			ent.Gender = owner.Gender
		} else {
			ent.Gender, err = e.resolveGender(ctx, first, m)
			if err != nil {
				return nil, err
			}
		}
		if pseudo == "" {
			pseudo, err = e.drawUnique(ctx, first, entities.ComponentFirstName, entities.CategoryFirstName, ent.Gender, &amb)
			if err != nil {
				return nil, err
			}
		}
		ent.PseudonymFirst = pseudo
	} else {
		ent.Gender = hintOrUnknown(m.GenderHint)
	}

	if last != "" {
		pseudo, _, err := e.reuseComponent(ctx, last, entities.ComponentLastName, &amb)
		if err != nil {
			return nil, err
		}
		if pseudo == "" {
			pseudo, err = e.drawUnique(ctx, last, entities.ComponentLastName, entities.CategoryLastName, entities.GenderNone, &amb)
			if err != nil {
				return nil, err
			}
		}
		ent.PseudonymLast = pseudo
	}

	ent.PseudonymFull = strings.TrimSpace(ent.PseudonymFirst + " " + ent.PseudonymLast)
	amb.apply(ent)
	return ent, nil
}

// splitName returns the first and last components of a PERSON mention.
// A lone token becomes a last name unless the store or the classifier says
// it is a given name.
func (e *AssignmentEngine) splitName(ctx context.Context, text string, m entities.Mention, amb *ambiguity) (first, last string, err error) {
	tokens := NameTokens(text)
	switch len(tokens) {
	case 0:
		return "", "", errors.New("empty person name")
	case 1:
	case 2:
		return tokens[0], tokens[1], nil
	default:
		amb.add(reasonCompoundName)
		return tokens[0], strings.Join(tokens[1:], " "), nil
	}

	token := tokens[0]
	asLast, err := e.store.FindByComponent(ctx, token, entities.ComponentLastName)
	if err != nil {
		return "", "", fmt.Errorf("looking up last name component: %w", err)
	}
	asFirst, err := e.store.FindByComponent(ctx, token, entities.ComponentFirstName)
	if err != nil {
		return "", "", fmt.Errorf("looking up first name component: %w", err)
	}

	switch {
	case len(asLast) > 0 && len(asFirst) > 0:
		amb.add(reasonTokenBothKinds)
		return "", token, nil
	case len(asLast) > 0:
		return "", token, nil
	case len(asFirst) > 0:
		return token, "", nil
	}

	g, err := e.classify(ctx, token, m)
	if err != nil {
		return "", "", err
	}
	if g != entities.GenderUnknown && g != entities.GenderNone {
		amb.add(reasonTokenAsGivenName)
		return token, "", nil
	}
	return "", token, nil
}

// reuseComponent returns the pseudonym the oldest stored entity assigned to
// value, with that entity. It returns "" when the component is new.
func (e *AssignmentEngine) reuseComponent(ctx context.Context, value string, kind entities.ComponentKind, amb *ambiguity) (string, *entities.Entity, error) {
	matches, err := e.store.FindByComponent(ctx, value, kind)
	if err != nil {
		return "", nil, fmt.Errorf("looking up %s component: %w", kind, err)
	}

	var (
		pseudo string
		owner  *entities.Entity
	)
	for _, match := range matches {
		p := match.PseudonymComponent(kind)
		if p == "" {
			continue
		}
		if owner == nil {
			pseudo, owner = p, match
			continue
		}
		if p != pseudo {
			amb.add(reasonComponentSplit)
			e.logger.Warn("component pseudonym mismatch between stored entities",
				"kind", kind, "kept_entity_id", owner.ID, "other_entity_id", match.ID)
			break
		}
	}
	return pseudo, owner, nil
}

// resolveGender picks the gender for a new first-name component: a known
// recognizer hint, else the pre-classified token gender, else the classifier.
func (e *AssignmentEngine) resolveGender(ctx context.Context, first string, m entities.Mention) (entities.Gender, error) {
	if m.GenderHint.IsKnown() {
		return m.GenderHint, nil
	}
	tokens := NameTokens(m.Text)
	if len(tokens) > 0 && tokens[0] == first {
		return e.classify(ctx, first, m)
	}
	return e.classifyName(ctx, first)
}

// classify returns the gender for the mention's first token, using the
// pre-classified value when present.
func (e *AssignmentEngine) classify(ctx context.Context, token string, m entities.Mention) (entities.Gender, error) {
	if m.TokenGender != entities.GenderNone {
		return m.TokenGender, nil
	}
	return e.classifyName(ctx, token)
}

func (e *AssignmentEngine) classifyName(ctx context.Context, name string) (entities.Gender, error) {
	if e.gender == nil {
		return entities.GenderUnknown, nil
	}
	g, err := e.gender.Classify(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn("gender classification failed", "error", err)
		return entities.GenderUnknown, nil
	}
	if g == entities.GenderNone {
		return entities.GenderUnknown, nil
	}
	return g, nil
}

func hintOrUnknown(g entities.Gender) entities.Gender {
	if g == entities.GenderNone {
		return entities.GenderUnknown
	}
	return g
}

// drawUnique draws a pseudonym for a new real component. A candidate is
// taken when it equals the real value or is already in use as a pseudonym
// of a conflicting kind. Exhaustion falls back from the gender partition to
// the combined pool, then to numbered variants flagged ambiguous.
func (e *AssignmentEngine) drawUnique(ctx context.Context, real string, kind entities.ComponentKind, category entities.Category, gender entities.Gender, amb *ambiguity) (string, error) {
	kinds := conflictingKinds(kind)
	taken := func(candidate string) (bool, error) {
		if candidate == real {
			return true, nil
		}
		for _, k := range kinds {
			//nolint:loopcall // at most three kinds per candidate
			used, err := e.store.PseudonymComponentInUse(ctx, candidate, k)
			if err != nil || used {
				return used, err
			}
		}
		return false, nil
	}

	pseudo, err := e.library.Draw(e.theme, category, gender, taken)
	if err == nil {
		return pseudo, nil
	}
	if !errors.Is(err, entities.ErrPoolExhausted) {
		return "", fmt.Errorf("drawing pseudonym: %w", err)
	}

	if category == entities.CategoryFirstName && gender != entities.GenderNone {
		e.metrics.IncrementPoolFallback("combined")
		pseudo, err = e.library.Draw(e.theme, category, entities.GenderNone, taken)
		if err == nil {
			return pseudo, nil
		}
		if !errors.Is(err, entities.ErrPoolExhausted) {
			return "", fmt.Errorf("drawing pseudonym: %w", err)
		}
	}

	e.metrics.IncrementPoolFallback("numbered")
	e.logger.Warn("pseudonym pool exhausted, using numbered variant",
		"theme", e.theme, "category", category)
	pool := e.library.Pool(e.theme, category, entities.GenderNone)
	for n := 2; n <= maxVariantGeneration; n++ {
		for _, base := range pool {
			candidate := numberedVariant(base, n)
			used, err := taken(candidate)
			if err != nil {
				return "", fmt.Errorf("checking pseudonym: %w", err)
			}
			if !used {
				amb.add(reasonPoolExhausted)
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("theme %s category %s: %w", e.theme, category, entities.ErrPoolExhausted)
}

// conflictingKinds lists the pseudonym columns a new component must not
// already appear in. A person known by one name has that component as its
// whole pseudonym, so first names, last names and full pseudonyms share one
// namespace.
func conflictingKinds(kind entities.ComponentKind) []entities.ComponentKind {
	switch kind {
	case entities.ComponentFirstName:
		return []entities.ComponentKind{entities.ComponentFirstName, entities.ComponentLastName, entities.ComponentFull}
	case entities.ComponentLastName:
		return []entities.ComponentKind{entities.ComponentLastName, entities.ComponentFirstName, entities.ComponentFull}
	default:
		return []entities.ComponentKind{entities.ComponentFull}
	}
}
