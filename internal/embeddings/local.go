package embeddings

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	vec "github.com/directorio/hub/pkg/embeddings"
)

// bucketOffset is added to the character index before hashing it into a bucket.
const bucketOffset = 17

// LocalEmbedding is the deterministic offline embedding. It is a hashing stand-in for a real
// model: texts only score as similar when they share characters at similar positions.
//
// The text is lowercased and stripped of diacritics; for the code point c at index i,
// sign(i) * ((c mod 31) + 1) is added to bucket (c * (i+17)) mod dims, where sign is +1 for
// even i and -1 for odd i. The result is L2-normalized; an all-zero vector is returned as is.
func LocalEmbedding(text string, dims int) []float64 {
	values := make([]float64, dims)
	if dims <= 0 {
		return values
	}

	d := int64(dims)

	for i, r := range []rune(FoldText(text)) {
		c := int64(r)
		bucket := (c * int64(i+bucketOffset)) % d

		weight := float64(c%31 + 1)
		if i%2 == 1 {
			weight = -weight
		}

		values[bucket] += weight
	}

	vec.NormalizeL2(values)

	return values
}

// FoldText lowercases text and removes combining marks (á -> a, ñ -> n).
func FoldText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	return strings.ToLower(folded)
}

const (
	fallbackLabel        = "[local-fallback]"
	systemExcerptMaxRune = 160
)

// LocalChatCompletion is the templated answer used when no remote model responds. It echoes
// the first non-empty line of the user prompt and an excerpt of the system prompt.
func LocalChatCompletion(systemPrompt, userPrompt string) string {
	request := firstNonEmptyLine(userPrompt)
	if request == "" {
		request = "(empty request)"
	}

	var b strings.Builder

	b.WriteString(fallbackLabel)
	b.WriteString(" The language model is not available, so this is an automatic response.\n")
	b.WriteString("Request: ")
	b.WriteString(request)
	b.WriteString("\n")
	b.WriteString("Instructions: ")
	b.WriteString(truncateRunes(strings.Join(strings.Fields(systemPrompt), " "), systemExcerptMaxRune))

	return b.String()
}

// IsLocalChatCompletion reports whether text was produced by LocalChatCompletion.
func IsLocalChatCompletion(text string) bool {
	return strings.HasPrefix(text, fallbackLabel)
}

func firstNonEmptyLine(s string) string {
	for line := range strings.Lines(s) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}

	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
