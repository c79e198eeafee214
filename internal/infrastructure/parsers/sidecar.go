package parsers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

// SidecarExtensions are tried in order after the document path.
var SidecarExtensions = []string{".spans.json", ".spans.csv"}

// defaultConfidence is used when a span file omits confidence.
const defaultConfidence = 1.0

// ErrNoSidecar is returned when a document has no span file.
var ErrNoSidecar = errors.New("no span file found")

// SidecarRecognizer implements ports.Recognizer by reading spans that an
// external NER step wrote next to the document.
type SidecarRecognizer struct{}

// NewSidecarRecognizer creates a new SidecarRecognizer.
func NewSidecarRecognizer() *SidecarRecognizer {
	return &SidecarRecognizer{}
}

// SidecarPath returns the first existing span file for documentPath.
func SidecarPath(documentPath string) (string, error) {
	for _, ext := range SidecarExtensions {
		p := documentPath + ext
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w for %s (expected %s)", ErrNoSidecar, documentPath, strings.Join(SidecarExtensions, " or "))
}

// Recognize reads and resolves the sidecar spans for documentPath.
func (r *SidecarRecognizer) Recognize(ctx context.Context, documentPath, text string) ([]entities.DetectedSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := SidecarPath(documentPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening span file: %w", err)
	}
	defer f.Close()

	raw, err := ForFile(path).Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Resolve(raw, text)
}

// ModelInfo names the recognizer for audit records.
func (r *SidecarRecognizer) ModelInfo() (string, string) {
	return "sidecar", "1"
}

// Resolve checks raw spans against text. Spans with offsets must cover
// exactly their text; spans without offsets expand to every whole-word
// occurrence of their text.
func Resolve(raw []RawSpan, text string) ([]entities.DetectedSpan, error) {
	var spans []entities.DetectedSpan
	for _, r := range raw {
		typ, err := entities.ParseEntityType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.LineNum, err)
		}
		gender, err := parseGender(r.Gender)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.LineNum, err)
		}
		conf := defaultConfidence
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}

		base := entities.DetectedSpan{Text: r.Text, EntityType: typ, Confidence: conf, GenderHint: gender}

		if r.Start == nil && r.End == nil {
			for _, loc := range services.LocateAll(text, r.Text) {
				s := base
				s.Start, s.End = loc[0], loc[1]
				spans = append(spans, s)
			}
			continue
		}

		if r.Start == nil || r.End == nil {
			return nil, fmt.Errorf("line %d: start and end must both be set", r.LineNum)
		}
		start, end := *r.Start, *r.End
		if start < 0 || end > len(text) || start >= end {
			return nil, fmt.Errorf("line %d: offsets [%d,%d) out of range", r.LineNum, start, end)
		}
		if text[start:end] != r.Text {
			return nil, fmt.Errorf("line %d: span text does not match offsets [%d,%d)", r.LineNum, start, end)
		}
		base.Start, base.End = start, end
		spans = append(spans, base)
	}
	return spans, nil
}

func parseGender(s string) (entities.Gender, error) {
	switch g := entities.Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case entities.GenderMale, entities.GenderFemale, entities.GenderNeutral, entities.GenderUnknown, entities.GenderNone:
		return g, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}
