package resolver

import (
	"strings"
	"unicode/utf8"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// MaxCandidates caps every candidate list.
const MaxCandidates = 5

// Scores shared by the matchers.
const (
	scoreExact         = 100
	scoreOwnerOfProp   = 95
	scoreAllTokens     = 95
	scoreEmailAll      = 90
	scoreEmailSome     = 85
	scoreAddress       = 80
	scoreAnyOwner      = 80
	scorePostcode      = 70
	scoreFallbackLease = 50
	minOverlapScore    = 50
	minTokenLength     = 3
	maxTokenDistance   = 1
)

// overlapScore is the share of characters of a that also occur in b, scaled
// by the longer of the two strings.
func overlapScore(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	common := 0
	for _, r := range a {
		if strings.ContainsRune(b, r) {
			common++
		}
	}
	return common * 100 / longest
}

// containsEither reports whether either string contains the other.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var titles = map[string]bool{"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "prof": true}

// stripTitle removes a leading honorific and normalizes case and spacing.
func stripTitle(name string) string {
	words := strings.Fields(strings.ToLower(name))
	if len(words) > 1 && titles[strings.TrimSuffix(words[0], ".")] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

var tokenSeparators = strings.NewReplacer(".", " ", ",", " ", "-", " ", "_", " ", "'", "")

// tokens splits a name into lower-case words of at least minTokenLength runes.
func tokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(tokenSeparators.Replace(strings.ToLower(s))) {
		if utf8.RuneCountInString(w) >= minTokenLength {
			out = append(out, w)
		}
	}
	return out
}

// tokensClose reports whether two tokens are equal or one edit apart.
func tokensClose(a, b string) bool {
	if a == b {
		return true
	}
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub) <= maxTokenDistance
}

// tokenScore scores two names by their matching tokens. It returns 0 when
// no token matches.
func tokenScore(search, candidate []string) int {
	if len(search) == 0 || len(candidate) == 0 {
		return 0
	}
	matched := 0
	for _, s := range search {
		for _, c := range candidate {
			if tokensClose(s, c) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	if matched >= min(len(search), len(candidate)) {
		return scoreAllTokens
	}
	return 55 + 40*matched/max(len(search), len(candidate))
}
