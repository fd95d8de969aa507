package query

import (
	"net/url"
	"sort"
	"strings"

	"github.com/rednetexplorer/core/internal/searchindex"
)

const snippetRadius = 40

// Engine evaluates parsed queries against an index.
type Engine struct {
	Index *searchindex.Index
}

// New constructs an Engine over idx.
func New(idx *searchindex.Index) *Engine {
	return &Engine{Index: idx}
}

// Search parses raw and returns matching documents ranked by descending
// score, ties broken by most-recent IndexedAt (spec §4.8).
func (e *Engine) Search(raw string) []Result {
	q := Parse(raw)
	return e.Evaluate(q)
}

// Evaluate runs an already-parsed Query against the index.
func (e *Engine) Evaluate(q Query) []Result {
	candidates := e.candidateDocs(q)
	n := e.Index.DocCount()

	var results []Result
	for _, doc := range candidates {
		if !e.passesFilters(doc, q.Filters) {
			continue
		}
		if !e.matchesAnyGroup(doc, q.Groups) {
			continue
		}
		score := e.score(doc, q, n)
		results = append(results, Result{
			DocID:   doc.ID,
			Score:   score,
			Snippet: snippet(doc.Body, allPositiveWords(q.Groups)),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		di, _ := e.Index.Document(results[i].DocID)
		dj, _ := e.Index.Document(results[j].DocID)
		return di.IndexedAt.After(dj.IndexedAt)
	})
	return results
}

// candidateDocs collects the OR-candidate set: any doc carrying a posting
// for any positive term across any group (spec §4.7's find() contract).
func (e *Engine) candidateDocs(q Query) []searchindex.Document {
	termSet := map[string]struct{}{}
	for _, g := range q.Groups {
		for _, c := range g.Clauses {
			if c.Negated {
				continue
			}
			for _, w := range c.Words {
				termSet[w] = struct{}{}
			}
		}
	}
	if len(termSet) == 0 {
		return nil
	}
	terms := make([]string, 0, len(termSet))
	for t := range termSet {
		terms = append(terms, t)
	}

	ids := e.Index.Find(terms)
	docs := make([]searchindex.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := e.Index.Document(id); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (e *Engine) matchesAnyGroup(doc searchindex.Document, groups []Group) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if e.matchesGroup(doc, g) {
			return true
		}
	}
	return false
}

func (e *Engine) matchesGroup(doc searchindex.Document, g Group) bool {
	for _, c := range g.Clauses {
		matched := e.clauseMatches(doc, c)
		if c.Negated && matched {
			return false
		}
		if !c.Negated && !matched {
			return false
		}
	}
	return true
}

func (e *Engine) clauseMatches(doc searchindex.Document, c Clause) bool {
	if c.Phrase {
		return phraseMatches(e.Index, doc, c.Words)
	}
	for _, w := range c.Words {
		if e.Index.Postings(w, doc.ID) == nil {
			return false
		}
	}
	return true
}

func (e *Engine) passesFilters(doc searchindex.Document, f Filters) bool {
	if f.Site != "" {
		u, err := url.Parse(doc.URL)
		host := doc.URL
		if err == nil && u.Host != "" {
			host = u.Host
		}
		if !strings.Contains(strings.ToLower(host), f.Site) {
			return false
		}
	}
	if f.Type != "" && !strings.EqualFold(string(doc.Kind), f.Type) {
		return false
	}
	if f.Title != "" {
		for _, w := range searchindex.Tokenize(f.Title) {
			if !e.Index.TitleContains(doc.ID, w) {
				return false
			}
		}
	}
	return true
}

func (e *Engine) score(doc searchindex.Document, q Query, n int) float64 {
	var total float64
	for _, g := range q.Groups {
		for _, c := range g.Clauses {
			if c.Negated {
				continue
			}
			var contribution float64
			for _, w := range c.Words {
				contribution += scoreClause(e.Index, doc, n, w)
			}
			if c.Phrase && phraseMatches(e.Index, doc, c.Words) {
				contribution *= phraseMultiplier
			}
			total += contribution
		}
	}
	return total
}

func allPositiveWords(groups []Group) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, g := range groups {
		for _, c := range g.Clauses {
			if c.Negated {
				continue
			}
			for _, w := range c.Words {
				if _, ok := seen[w]; !ok {
					seen[w] = struct{}{}
					out = append(out, w)
				}
			}
		}
	}
	return out
}

// snippet implements spec §4.8: locate the earliest query-term position in
// the body, emit a window of ±40 characters, ellipses where truncated.
func snippet(body string, terms []string) string {
	lower := strings.ToLower(body)
	earliest := -1
	for _, t := range terms {
		if idx := strings.Index(lower, t); idx >= 0 && (earliest < 0 || idx < earliest) {
			earliest = idx
		}
	}
	if earliest < 0 {
		if len(body) <= 2*snippetRadius {
			return body
		}
		return body[:2*snippetRadius] + "…"
	}

	start := earliest - snippetRadius
	prefix := ""
	if start < 0 {
		start = 0
	} else if start > 0 {
		prefix = "…"
	}
	end := earliest + snippetRadius
	suffix := ""
	if end >= len(body) {
		end = len(body)
	} else {
		suffix = "…"
	}
	return prefix + body[start:end] + suffix
}
