// Package parsers reads recognizer output stored next to a document as a
// sidecar span file.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawSpan is one span as written by an external recognizer, before it is
// checked against the document text.
type RawSpan struct {
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Start      *int     `json:"start,omitempty"` // Pointer to distinguish 0 from unset
	End        *int     `json:"end,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	LineNum    int      `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing spans from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawSpan, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
