package services

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

const (
	// DefaultChunkSize is the default size for text chunks.
	DefaultChunkSize = 2000
	// DefaultChunkOverlap is the default overlap between chunks.
	DefaultChunkOverlap = 200
)

// ChunkText splits text into chunks with overlap.
func ChunkText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	paragraphs := strings.Split(text, "\n\n")

	var currentChunk strings.Builder
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if currentChunk.Len()+len(para)+2 > chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, currentChunk.String())

			overlapText := getOverlapText(currentChunk.String(), overlap)
			currentChunk.Reset()
			currentChunk.WriteString(overlapText)
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(para)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	if len(chunks) == 0 && len(text) > 0 {
		chunks = append(chunks, text)
	}

	return chunks
}

// getOverlapText returns roughly the last n bytes of text without cutting a
// multi-byte rune.
func getOverlapText(text string, n int) string {
	if len(text) <= n {
		return text
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:]
}

// LocateAll returns the byte offsets of every whole-word occurrence of
// needle in text. Occurrences glued to letters or digits are skipped so a
// name is not found inside a longer word.
func LocateAll(text, needle string) [][2]int {
	if needle == "" {
		return nil
	}

	var found [][2]int
	offset := 0
	for {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return found
		}
		start := offset + i
		end := start + len(needle)
		if isWordBoundary(text, start, end) {
			found = append(found, [2]int{start, end})
			offset = end
		} else {
			_, size := utf8.DecodeRuneInString(text[start:])
			offset = start + size
		}
	}
}

func isWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ReplaceSpans substitutes each span with the value replace returns for it.
// Spans with offsets outside text, or overlapping an earlier span, are
// skipped and counted.
func ReplaceSpans(text string, spans []entities.DetectedSpan, replace func(entities.DetectedSpan) (string, bool)) (string, int) {
	ordered := make([]entities.DetectedSpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	var (
		b       strings.Builder
		cursor  int
		skipped int
	)
	b.Grow(len(text))
	for _, s := range ordered {
		if s.Start < cursor || s.Start >= s.End || s.End > len(text) {
			skipped++
			continue
		}
		value, ok := replace(s)
		if !ok {
			skipped++
			continue
		}
		b.WriteString(text[cursor:s.Start])
		b.WriteString(value)
		cursor = s.End
	}
	b.WriteString(text[cursor:])
	return b.String(), skipped
}
