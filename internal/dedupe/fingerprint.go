package dedupe

import (
	"regexp"
	"sort"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	mentionPattern = regexp.MustCompile(`[@#]\w+`)
	punctPattern   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text and strips URLs, mentions, hashtags and
// punctuation, collapsing whitespace.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = mentionPattern.ReplaceAllString(text, " ")
	text = punctPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Fingerprint computes an order-independent signature of a text: normalized
// words longer than three characters, sorted and rejoined. Paraphrases and
// reorderings of the same bot-campaign text collapse to the same fingerprint.
func Fingerprint(text string) string {
	words := strings.Fields(Normalize(text))
	kept := words[:0]
	for _, w := range words {
		if len(w) > 3 {
			kept = append(kept, w)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// Similarity computes a Jaccard-style word-overlap coefficient between two
// normalized texts, over words longer than two characters.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(text)) {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}
