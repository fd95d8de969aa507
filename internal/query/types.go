// Package query implements the grammar, filters, and ranking of spec §4.8:
// parsing a query string into AND groups joined by OR, applying site:/
// type:/title: field filters, and scoring matches with a TF-IDF-like
// formula.
package query

// Clause is one positive or negated term/phrase within an AND group.
type Clause struct {
	Words   []string // single-element for a plain term, multi-element for a phrase
	Phrase  bool
	Negated bool
}

// Group is a set of clauses joined by implicit AND; groups themselves are
// joined by OR.
type Group struct {
	Clauses []Clause
}

// Filters holds the field:value restrictions that apply to the whole
// query, per spec §4.8.
type Filters struct {
	Site  string
	Type  string
	Title string
}

// Query is a fully parsed query string.
type Query struct {
	Groups  []Group
	Filters Filters
}

// Result is one ranked match.
type Result struct {
	DocID   int64
	Score   float64
	Snippet string
}
