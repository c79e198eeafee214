package services

import (
	"strings"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

// courtesyTitles are stripped from the front of PERSON mentions before the
// name is split. Matching ignores case and a trailing dot.
var courtesyTitles = map[string]struct{}{
	"m": {}, "mme": {}, "mlle": {}, "dr": {}, "pr": {},
	"mr": {}, "mrs": {}, "ms": {}, "me": {},
}

// NameTokens normalizes a PERSON mention and returns its name tokens with a
// leading courtesy title removed. A mention that is only a title keeps it.
func NameTokens(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) > 1 && isCourtesyTitle(tokens[0]) {
		return tokens[1:]
	}
	return tokens
}

func isCourtesyTitle(token string) bool {
	_, ok := courtesyTitles[strings.ToLower(strings.TrimSuffix(token, "."))]
	return ok
}

// numberedVariant returns candidate with a generation suffix, starting at
// II for n == 2.
func numberedVariant(candidate string, n int) string {
	return candidate + " " + romanNumeral(n)
}

func romanNumeral(n int) string {
	values := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	symbols := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}

	var b strings.Builder
	for i, v := range values {
		for n >= v {
			b.WriteString(symbols[i])
			n -= v
		}
	}
	return b.String()
}

// mentionKey identifies one distinct real identity within a document.
func mentionKey(entityType entities.EntityType, text string) string {
	return string(entityType) + "\x00" + entities.NormalizeName(text)
}
