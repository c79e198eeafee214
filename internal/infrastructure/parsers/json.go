package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses spans from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed spans.
func (p *JSONParser) Parse(r io.Reader) ([]RawSpan, error) {
	var spans []RawSpan

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&spans); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range spans {
		spans[i].LineNum = i + 1
	}

	return spans, nil
}
