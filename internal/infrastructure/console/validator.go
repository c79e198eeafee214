// Package console provides the interactive span reviewer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

type decision int

const (
	accept decision = iota
	reject
	edit
)

// Validator asks an operator to accept, reject or edit each distinct
// mention of a document. Every span of a mention shares its decision.
type Validator struct {
	in    *bufio.Reader
	out   io.Writer
	label *color.Color
}

// NewValidator creates a Validator reading answers from in.
func NewValidator(in io.Reader, out io.Writer) *Validator {
	return &Validator{
		in:    bufio.NewReader(in),
		out:   out,
		label: color.New(color.FgCyan, color.Bold),
	}
}

type review struct {
	decision decision
	text     string
}

// Validate prompts for every distinct mention. End of input accepts the
// remaining mentions.
func (v *Validator) Validate(ctx context.Context, documentID, _ string, spans []entities.DetectedSpan) (*ports.ValidationResult, error) {
	reviews := make(map[string]review)
	var order []string
	for _, s := range spans {
		key := string(s.EntityType) + "\x00" + entities.NormalizeName(s.Text)
		if _, ok := reviews[key]; !ok {
			reviews[key] = review{decision: accept}
			order = append(order, key)
		}
	}

	if len(order) > 0 {
		fmt.Fprintf(v.out, "\nReview %d mention(s) in %s\n", len(order), documentID)
	}

	acceptRest := false
	for i, key := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if acceptRest {
			break
		}
		typ, text, _ := strings.Cut(key, "\x00")
		r, all, err := v.ask(i+1, len(order), entities.EntityType(typ), text)
		if err != nil {
			return nil, err
		}
		reviews[key] = r
		acceptRest = all
	}

	res := &ports.ValidationResult{}
	for _, s := range spans {
		key := string(s.EntityType) + "\x00" + entities.NormalizeName(s.Text)
		r := reviews[key]
		switch r.decision {
		case reject:
			res.Rejected++
		case edit:
			s.Text = r.text
			res.Edited++
			res.Spans = append(res.Spans, s)
		default:
			res.Accepted++
			res.Spans = append(res.Spans, s)
		}
	}
	return res, nil
}

// ask prompts for one mention. all reports that the operator accepted
// every remaining mention.
func (v *Validator) ask(n, total int, typ entities.EntityType, text string) (review, bool, error) {
	for {
		fmt.Fprintf(v.out, "[%d/%d] ", n, total)
		v.label.Fprintf(v.out, "%-8s", typ)
		fmt.Fprintf(v.out, " %s\n  [a]ccept  [r]eject  [e]dit  accept [A]ll: ", text)

		answer, err := v.readLine()
		if errors.Is(err, io.EOF) {
			return review{decision: accept}, true, nil
		}
		if err != nil {
			return review{}, false, fmt.Errorf("reading answer: %w", err)
		}

		switch answer {
		case "", "a", "y", "yes":
			return review{decision: accept}, false, nil
		case "A":
			return review{decision: accept}, true, nil
		case "r", "n", "no":
			return review{decision: reject}, false, nil
		case "e":
			fmt.Fprint(v.out, "  corrected text: ")
			edited, err := v.readLine()
			if err != nil && !errors.Is(err, io.EOF) {
				return review{}, false, fmt.Errorf("reading correction: %w", err)
			}
			edited = entities.NormalizeName(edited)
			if edited == "" || edited == text {
				return review{decision: accept}, false, nil
			}
			return review{decision: edit, text: edited}, false, nil
		default:
			fmt.Fprintln(v.out, "  please answer a, r, e or A")
		}
	}
}

func (v *Validator) readLine() (string, error) {
	line, err := v.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line != "" {
		return line, nil
	}
	return line, err
}

// AutoAccept accepts every span. It is used when no operator is present.
type AutoAccept struct{}

// Validate returns spans unchanged.
func (AutoAccept) Validate(_ context.Context, _ string, _ string, spans []entities.DetectedSpan) (*ports.ValidationResult, error) {
	return &ports.ValidationResult{Spans: spans, Accepted: len(spans)}, nil
}
