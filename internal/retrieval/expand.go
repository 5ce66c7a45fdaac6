package retrieval

import "strings"

// synonyms is the fixed domain-synonym table spec.md §4.6 step 3
// refers to. Entries are deliberately general-purpose (not tied to any
// one document corpus) since the server doesn't know its corpus ahead
// of time.
var synonyms = map[string][]string{
	"error":     {"failure", "exception"},
	"config":    {"configuration", "settings"},
	"doc":       {"document"},
	"docs":      {"documents"},
	"setup":     {"installation", "configuration"},
	"delete":    {"remove"},
	"create":    {"add", "insert"},
	"update":    {"modify", "change"},
	"password":  {"credential", "secret"},
	"issue":     {"problem", "bug"},
	"fast":      {"quick", "rapid"},
	"slow":      {"delayed", "latent"},
}

const maxExpansionVariants = 3

// expandQuery emits the original query plus up to maxExpansionVariants
// variants, each generated by substituting one recognized term with its
// first synonym. Query expansion never drops the original.
func expandQuery(normalized string) []string {
	variants := []string{normalized}
	words := strings.Fields(normalized)

	for i, w := range words {
		repl, ok := synonyms[w]
		if !ok || len(repl) == 0 {
			continue
		}
		variant := make([]string, len(words))
		copy(variant, words)
		variant[i] = repl[0]
		candidate := strings.Join(variant, " ")
		if candidate == normalized {
			continue
		}
		variants = append(variants, candidate)
		if len(variants) > maxExpansionVariants {
			break
		}
	}

	return variants
}
