package retrieval

import (
	"strings"
	"unicode"
)

// contractions is the fixed expansion table spec.md §4.6 step 1 names.
// Kept small and deliberately non-exhaustive — it's a normalization aid,
// not a grammar checker.
var contractions = map[string]string{
	"what's":    "what is",
	"what're":   "what are",
	"where's":   "where is",
	"who's":     "who is",
	"how's":     "how is",
	"it's":      "it is",
	"that's":    "that is",
	"there's":   "there is",
	"can't":     "cannot",
	"won't":     "will not",
	"don't":     "do not",
	"doesn't":   "does not",
	"didn't":    "did not",
	"isn't":     "is not",
	"aren't":    "are not",
	"wasn't":    "was not",
	"weren't":   "were not",
	"haven't":   "have not",
	"hasn't":    "has not",
	"hadn't":    "had not",
	"wouldn't":  "would not",
	"couldn't":  "could not",
	"shouldn't": "should not",
	"i'm":       "i am",
	"i've":      "i have",
	"i'll":      "i will",
	"i'd":       "i would",
	"you're":    "you are",
	"you've":    "you have",
	"you'll":    "you will",
}

// preservedPunctuation keeps question/sentence punctuation that carries
// semantic weight; everything else is dropped as noise.
const preservedPunctuation = "?.!,-"

// normalizeQuery trims, collapses whitespace, expands contractions, and
// strips non-semantic punctuation per spec.md §4.6 step 1.
func normalizeQuery(raw string) string {
	fields := strings.Fields(raw)
	for i, f := range fields {
		lower := strings.ToLower(f)
		trimmed := strings.TrimRight(lower, ".,!?;:")
		suffix := lower[len(trimmed):]
		if expanded, ok := contractions[trimmed]; ok {
			fields[i] = expanded + suffix
		} else {
			fields[i] = lower
		}
	}
	joined := strings.Join(fields, " ")

	var b strings.Builder
	for _, r := range joined {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(preservedPunctuation, r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenize lowercases and splits on non-alphanumeric runs, producing the
// term set used by keyword overlap, BM25-lite, and diversity filtering.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
