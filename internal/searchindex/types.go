// Package searchindex implements the in-memory inverted index of spec
// §4.7: tokenized postings keyed by term, a document map keyed by id, and
// atomic add/remove so concurrent queries never observe a partial update.
package searchindex

import "time"

// Kind labels the document's content type for the query engine's type:
// filter.
type Kind string

const (
	KindPage Kind = "page"
	KindFile Kind = "file"
)

// Document is a stored, tokenized document. Body is retained verbatim
// alongside the postings so internal/query can extract result snippets
// without a second fetch.
type Document struct {
	ID        int64
	URL       string
	Title     string
	Body      string
	Kind      Kind
	IndexedAt time.Time

	titleTerms map[string]struct{} // term set falling inside the title span, for title: filters and title_boost
	termCount  int                 // total posting entries contributed by this document, for the I3 invariant
}

// Posting is one (term, document) occurrence record. Count is the term's
// true frequency within the document (spec §3's term_frequencies vector);
// Positions holds a sample of its byte offsets within the concatenated
// title+body text, capped at 10 per spec §4.7 and independent of Count —
// a term occurring 40 times still carries Count == 40 with only 10 sampled
// Positions.
type Posting struct {
	DocID     int64
	Count     int
	Positions []int
}

// Stats summarizes index size for the admin API and tests.
type Stats struct {
	Documents int
	Terms     int
	Postings  int
}
