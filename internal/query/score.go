package query

import (
	"math"
	"strings"

	"github.com/rednetexplorer/core/internal/searchindex"
)

const (
	titleBoostFactor = 1.5
	urlBoostFactor   = 1.2
	phraseMultiplier = 2.0
)

// idf implements spec §4.8's idf(t) = log(N / (1 + df(t))).
func idf(n, df int) float64 {
	return math.Log(float64(n) / (1 + float64(df)))
}

// scoreClause returns the term's contribution to score(d) for one word of
// one clause, per spec §4.8's Σ_t tf·idf·title_boost·url_boost.
func scoreClause(idx *searchindex.Index, doc searchindex.Document, n int, word string) float64 {
	posting := idx.Postings(word, doc.ID)
	if posting == nil {
		return 0
	}
	tf := float64(posting.Count)
	df := idx.DocFrequency(word)

	score := tf * idf(n, df)
	if idx.TitleContains(doc.ID, word) {
		score *= titleBoostFactor
	}
	if strings.Contains(strings.ToLower(doc.URL), word) {
		score *= urlBoostFactor
	}
	return score
}

// phraseMatches reports whether clause's words occur at consecutive
// positions in doc, approximating "consecutive positions" by checking that
// each word's posting carries a position immediately following the
// previous word's matched position plus the word's own byte length and a
// single separator byte (postings retain at most the first 10 occurrences
// per spec §4.7, so a phrase beyond that window in a long document may be
// missed — an accepted approximation).
func phraseMatches(idx *searchindex.Index, doc searchindex.Document, words []string) bool {
	if len(words) == 0 {
		return false
	}
	first := idx.Postings(words[0], doc.ID)
	if first == nil {
		return false
	}
	for _, start := range first.Positions {
		if phraseMatchesAt(idx, doc, words, start) {
			return true
		}
	}
	return false
}

func phraseMatchesAt(idx *searchindex.Index, doc searchindex.Document, words []string, start int) bool {
	pos := start
	for i, w := range words {
		if i == 0 {
			continue
		}
		expected := pos + len(words[i-1]) + 1
		posting := idx.Postings(w, doc.ID)
		if posting == nil {
			return false
		}
		found := false
		for _, p := range posting.Positions {
			if p == expected {
				pos = p
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
