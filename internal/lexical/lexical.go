// Package lexical compares a transcription against the word the learner was
// asked to say.
package lexical

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// punctuation is the character class removed before comparison.
var punctuation = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")

// Result is the outcome of comparing a transcription with the expected word.
type Result struct {
	Transcribed   string  `json:"transcribed"`
	Expected      string  `json:"expected"`
	Distance      int     `json:"distance"`
	Accuracy      float64 `json:"accuracy"`
	PhoneticMatch bool    `json:"phoneticMatch"`
}

// Normalize lowercases s and strips punctuation and surrounding whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(punctuation.ReplaceAllString(strings.ToLower(s), ""))
}

// Score returns accuracy marks in [0, 100] derived from the Levenshtein distance
// between the normalized strings. Two empty strings score 100.
func Score(transcribed, expected string) float64 {
	return Compare(transcribed, expected).Accuracy
}

// Compare normalizes both strings and reports edit distance, accuracy and
// whether they share a Double Metaphone code.
func Compare(transcribed, expected string) Result {
	a, b := Normalize(transcribed), Normalize(expected)
	res := Result{Transcribed: a, Expected: b}

	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		res.Accuracy = 100
		return res
	}

	res.Distance = matchr.Levenshtein(a, b)
	acc := float64(maxLen-res.Distance) / float64(maxLen) * 100
	res.Accuracy = math.Max(0, math.Min(100, acc))
	res.PhoneticMatch = PhoneticMatch(a, b)
	return res
}

// PhoneticMatch reports whether any word of a shares a Double Metaphone code
// with any word of b. Empty strings never match.
func PhoneticMatch(a, b string) bool {
	ca, cb := codes(a), codes(b)
	if len(ca) > len(cb) {
		ca, cb = cb, ca
	}
	for c := range ca {
		if _, ok := cb[c]; ok {
			return true
		}
	}
	return false
}

func codes(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		p, alt := matchr.DoubleMetaphone(w)
		if p != "" {
			out[p] = struct{}{}
		}
		if alt != "" {
			out[alt] = struct{}{}
		}
	}
	return out
}
