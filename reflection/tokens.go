package reflection

import (
	"math"
	"strings"
)

// charsPerToken is the character-count approximation used everywhere a token
// budget is enforced. Kept as an isolated constant so the estimator can be
// swapped for a real tokenizer without touching pipeline logic.
const charsPerToken = 3.6

// truncationMarker replaces the middle of an over-budget entry.
const truncationMarker = "\n[... content trimmed ...]\n"

// EstimateTokens approximates the token cost of s as ceil(len/3.6).
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / charsPerToken))
}

// EstimateEntryTokens approximates the token cost of one entry (title + body).
func EstimateEntryTokens(e JournalEntry) int {
	return EstimateTokens(e.Title + e.Content)
}

// TruncateHeadTail shortens s to roughly maxTokens, keeping ~70% of the
// allowed characters from the start and the remainder from the end, with a
// marker in between. Strings within budget are returned unchanged.
func TruncateHeadTail(s string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(s) <= maxTokens {
		return s
	}
	maxChars := int(float64(maxTokens) * charsPerToken)
	if maxChars <= len(truncationMarker) {
		return strings.TrimSpace(s[:maxChars])
	}

	keep := maxChars - len(truncationMarker)
	head := int(float64(keep) * 0.7)
	tail := keep - head
	if head >= len(s) {
		return s
	}
	return strings.TrimSpace(s[:head]) + truncationMarker + strings.TrimSpace(s[len(s)-tail:])
}
