package reflection

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultSampleThreshold is the corpus size above which sampling kicks in.
	DefaultSampleThreshold = 50

	// DefaultSampleTarget is the sampled corpus size.
	DefaultSampleTarget = 40
)

// chargedVocabulary is the emotionally loaded word list behind the intensity
// heuristic. Matching is lowercase, punctuation-stripped, whole-word.
var chargedVocabulary = map[string]bool{
	"love": true, "hate": true, "angry": true, "furious": true, "rage": true,
	"happy": true, "joy": true, "thrilled": true, "excited": true, "ecstatic": true,
	"sad": true, "devastated": true, "heartbroken": true, "crying": true, "cried": true,
	"terrified": true, "scared": true, "afraid": true, "anxious": true, "panic": true,
	"amazing": true, "wonderful": true, "terrible": true, "horrible": true, "awful": true,
	"never": true, "always": true, "worst": true, "best": true,
	"overwhelmed": true, "exhausted": true, "desperate": true, "hopeless": true,
	"grateful": true, "proud": true, "ashamed": true, "guilty": true, "jealous": true,
	"lonely": true, "alone": true, "betrayed": true, "hurt": true, "broken": true,
}

// SampleEntries reduces an oversized corpus to a bounded, diverse subset:
// most-recent entries first, then highest emotional intensity, then longest,
// then evenly strided entries for temporal coverage. Output is deterministic
// for a given input, contains no duplicate IDs, and is re-sorted ascending by
// creation time. Entry content is never altered.
//
// Inputs at or below threshold are returned as-is.
func SampleEntries(entries []JournalEntry, threshold, target int) []JournalEntry {
	if threshold <= 0 {
		threshold = DefaultSampleThreshold
	}
	if target <= 0 {
		target = DefaultSampleTarget
	}
	if len(entries) <= threshold || len(entries) <= target {
		return entries
	}

	selected := make(map[string]bool, target)
	out := make([]JournalEntry, 0, target)
	take := func(pool []JournalEntry, n int) {
		for _, e := range pool {
			if n <= 0 || len(out) >= target {
				return
			}
			if selected[e.ID] {
				continue
			}
			selected[e.ID] = true
			out = append(out, e)
			n--
		}
	}

	// Most recent 40%.
	byRecency := append([]JournalEntry(nil), entries...)
	sort.SliceStable(byRecency, func(i, j int) bool {
		return byRecency[i].CreatedAt.After(byRecency[j].CreatedAt)
	})
	take(byRecency, target*40/100)

	// Highest emotional intensity 30%.
	byIntensity := append([]JournalEntry(nil), entries...)
	sort.SliceStable(byIntensity, func(i, j int) bool {
		return EmotionalIntensity(byIntensity[i]) > EmotionalIntensity(byIntensity[j])
	})
	take(byIntensity, target*30/100)

	// Longest (most detailed) 20%.
	byLength := append([]JournalEntry(nil), entries...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Content) > len(byLength[j].Content)
	})
	take(byLength, target*20/100)

	// Remainder: evenly spaced across the full corpus for temporal coverage.
	if remaining := target - len(out); remaining > 0 {
		stride := len(entries) / remaining
		if stride < 1 {
			stride = 1
		}
		strided := make([]JournalEntry, 0, remaining)
		for i := 0; i < len(entries); i += stride {
			strided = append(strided, entries[i])
		}
		take(strided, remaining)
	}

	SortEntriesAscending(out)
	return out
}

// EmotionalIntensity scores an entry in [0,1] from charged-vocabulary hits,
// exclamation/question density, and entry length. Used only to prioritize
// sampling, never to shape reflection content.
func EmotionalIntensity(e JournalEntry) float64 {
	text := strings.ToLower(e.Title + " " + e.Content)
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if chargedVocabulary[w] {
			hits++
		}
	}

	marks := strings.Count(text, "!") + strings.Count(text, "?")

	score := float64(hits) * 0.08
	score += float64(marks) / float64(len(words)) * 2.0
	score += math.Min(float64(len(e.Content))/4000.0, 1.0) * 0.25

	return math.Min(score, 1.0)
}
