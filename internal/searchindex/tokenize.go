package searchindex

import (
	"strings"
	"unicode"
)

const maxPositionsPerTerm = 10

// token is one lowercased term and the byte offset it started at in the
// source text.
type token struct {
	term   string
	offset int
}

// tokenize implements spec §4.7's tokenization rule: lowercase, split on
// any rune that is not alphanumeric and not a hyphen, discard tokens
// shorter than 2 characters and tokens that are purely numeric.
func tokenize(text string) []token {
	var tokens []token
	runes := []rune(text)
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		raw := string(runes[start:end])
		offset := byteOffset(runes, start)
		start = -1
		if len([]rune(raw)) < 2 {
			return
		}
		if isNumeric(raw) {
			return
		}
		tokens = append(tokens, token{term: strings.ToLower(raw), offset: offset})
	}

	for i, r := range runes {
		if isTermRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(runes))

	return tokens
}

// Tokenize exposes the term-extraction rule for callers outside this
// package (internal/query normalizes query words the same way documents
// are tokenized, so "Widget" in a query matches "widget" in the index).
func Tokenize(text string) []string {
	toks := tokenize(text)
	out := make([]string, len(toks))
	for i, tk := range toks {
		out[i] = tk.term
	}
	return out
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	// a bare "-" or "--" is not numeric content
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// byteOffset recomputes the byte offset of rune index i since tokenize
// works over a rune slice but positions are specified in bytes (spec
// §4.7: "first 10 byte positions").
func byteOffset(runes []rune, i int) int {
	return len(string(runes[:i]))
}
