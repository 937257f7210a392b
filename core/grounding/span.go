package grounding

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)

// SelectQuoteSpan picks the sentence of a section that best supports a claim,
// scored by case-insensitive token overlap, and returns its exact byte span.
// Used to attach a readable quote when the claim paraphrases rather than
// quotes the section. Returns ok=false when no sentence shares a token with
// the claim.
func SelectQuoteSpan(text string, claim string) (start int, end int, ok bool) {
	claimTokens := tokenSet(claim)
	if len(claimTokens) == 0 || len(text) == 0 {
		return 0, 0, false
	}

	bestScore := 0
	bestStart, bestEnd := 0, 0

	offset := 0
	for _, sentence := range splitSentences(text) {
		score := 0
		for token := range tokenSet(sentence) {
			if claimTokens[token] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = offset
			bestEnd = offset + len(sentence)
		}
		offset += len(sentence)
	}

	if bestScore == 0 {
		return 0, 0, false
	}

	// Trim the span to the sentence content, keeping offsets exact.
	for bestStart < bestEnd && isSpace(text[bestStart]) {
		bestStart++
	}
	for bestEnd > bestStart && isSpace(text[bestEnd-1]) {
		bestEnd--
	}
	return bestStart, bestEnd, true
}

// splitSentences splits text at sentence boundaries, keeping every byte so
// the concatenation of the parts equals the input.
func splitSentences(text string) []string {
	boundaries := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(boundaries) == 0 {
		return []string{text}
	}

	var sentences []string
	previous := 0
	for _, boundary := range boundaries {
		sentences = append(sentences, text[previous:boundary[1]])
		previous = boundary[1]
	}
	if previous < len(text) {
		sentences = append(sentences, text[previous:])
	}
	return sentences
}

func tokenSet(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?\"'()")
		if token != "" {
			tokens[token] = true
		}
	}
	return tokens
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
