package tagging

import (
	"regexp"
	"strings"
)

// MaxTagLength is the maximum length of a normalized tag.
const MaxTagLength = 64

var (
	// tagPunctuation matches anything that isn't a lowercase letter, digit,
	// hyphen, or whitespace, so it can be stripped during normalization.
	tagPunctuation = regexp.MustCompile(`[^a-z0-9\-\s]`)
	// tagWhitespace matches runs of whitespace, collapsed to a single hyphen.
	tagWhitespace = regexp.MustCompile(`\s+`)
	// significantToken matches word-like tokens considered for prompt
	// significance (hits/candidate filtering); short stop-word-like tokens
	// are filtered by the caller via stopWords.
	significantToken = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]*`)
)

// Normalize lowercases, trims, strips punctuation (hyphens excepted),
// collapses internal whitespace to a hyphen, drops empties, and
// deduplicates — the tag normalization rule in the data model.
func Normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		n := normalizeOne(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func normalizeOne(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = tagPunctuation.ReplaceAllString(s, "")
	s = tagWhitespace.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxTagLength {
		s = s[:MaxTagLength]
	}
	return s
}

// Coverage returns |P ∩ K| / max(1, |P|): the fraction of prompt tags the
// KPT's tag set satisfies. Asymmetric by design — it favors KPTs that
// cover what the user asked, not KPTs with many unrelated tags.
func Coverage(promptTags, kptTags []string) float64 {
	if len(promptTags) == 0 {
		return 0
	}
	kptSet := make(map[string]bool, len(kptTags))
	for _, t := range kptTags {
		kptSet[t] = true
	}
	hits := 0
	for _, t := range promptTags {
		if kptSet[t] {
			hits++
		}
	}
	return float64(hits) / float64(max(1, len(promptTags)))
}

// Hits counts case-insensitive, token-boundary matches of prompt-significant
// tokens within kptText. Tokens shorter than 3 characters or present in a
// small stop-word list are not significant and never counted, matching the
// "prompt-significant tokens" qualifier in the data model.
func Hits(promptTokens []string, kptText string) int {
	if kptText == "" {
		return 0
	}
	textTokens := make(map[string]int)
	for _, tok := range significantToken.FindAllString(kptText, -1) {
		textTokens[strings.ToLower(tok)]++
	}

	count := 0
	for _, t := range SignificantTokens(promptTokens) {
		count += textTokens[t]
	}
	return count
}

// stopWords are common tokens too generic to carry selection signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "is": true, "it": true,
	"this": true, "that": true, "with": true, "as": true, "be": true,
	"are": true, "was": true, "were": true, "by": true, "at": true,
}

// SignificantTokens lowercases and filters a token list down to the
// prompt-significant subset: length ≥ 3, not a stop word.
func SignificantTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		t := strings.ToLower(tok)
		if len(t) < 3 || stopWords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Tokenize splits free text into word-like tokens (a letter followed by
// letters or digits). Unlike ExtractTags' grammar, hyphenated compounds
// are split at the hyphen.
func Tokenize(text string) []string {
	return significantToken.FindAllString(text, -1)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
