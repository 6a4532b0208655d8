// Package tokenizer turns raw message text into the terms stored in the
// inverted index. It lower-cases input and splits on non-alphanumeric
// boundaries (Unicode-aware). Tokenization is pure: the same input always
// produces the same term sequence, which is what makes re-indexing a
// message idempotent. No stemming is applied; matching is exact-term.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a single normalised term and its ordinal position in the
// original text. Positions are consecutive term indices, not byte offsets,
// and are what phrase matching checks for adjacency.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens split at any rune that is
// neither a letter nor a digit.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for i, word := range words {
		tokens = append(tokens, Token{
			Term:     word,
			Position: i,
		})
	}
	return tokens
}

// Terms returns just the term strings of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}
