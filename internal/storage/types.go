package storage

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// AuxIDPrefix is the reserved namespace prefix of auxiliary-KB ids. Static
// KB ids never start with it, which keeps the two id spaces disjoint.
const AuxIDPrefix = "@"

// Tokenize splits a name into lowercased index tokens, breaking on any
// non-letter, non-digit rune. It mirrors the tokenization the backing
// full-text engines apply (FTS5 unicode61, Postgres simple config) so that
// Go-side fuzzy term expansion agrees with what is actually indexed.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BoundedLevenshtein reports the edit distance between a and b, or max+1
// when the distance exceeds max. The early exit keeps fuzzy term expansion
// cheap: most vocabulary tokens are rejected after a couple of rows.
func BoundedLevenshtein(a, b string, max int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la-lb > max || lb-la > max {
		return max + 1
	}
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return max + 1
		}
		prev, curr = curr, prev
	}

	if prev[lb] > max {
		return max + 1
	}
	return prev[lb]
}
