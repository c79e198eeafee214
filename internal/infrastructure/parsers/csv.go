package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses spans from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed spans.
// Expected columns: text, type, start, end, confidence, gender
func (p *CSVParser) Parse(r io.Reader) ([]RawSpan, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	requiredCols := []string{"text", "type"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawSpans.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawSpan, error) {
	var spans []RawSpan
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		span, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}

	return spans, nil
}

// parseRecord converts a CSV record to a RawSpan.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawSpan, error) {
	span := RawSpan{
		Text:    getColumn(record, colIndex, "text"),
		Type:    getColumn(record, colIndex, "type"),
		Gender:  getColumn(record, colIndex, "gender"),
		LineNum: lineNum,
	}

	for _, col := range []string{"start", "end"} {
		raw := getColumn(record, colIndex, col)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return RawSpan{}, fmt.Errorf("line %d: invalid %s offset: %w", lineNum, col, err)
		}
		if col == "start" {
			span.Start = &v
		} else {
			span.End = &v
		}
	}

	confStr := getColumn(record, colIndex, "confidence")
	if confStr != "" {
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			return RawSpan{}, fmt.Errorf("line %d: invalid confidence value %q: %w", lineNum, confStr, err)
		}
		span.Confidence = &conf
	}

	return span, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
