package searchindex

import (
	"log/slog"
	"sync"
	"time"
)

// Index is the mutex-guarded inverted index of spec §4.7. All mutation runs
// under a single write lock so readers (Find, Stats) never observe a
// partial update, matching spec §5's atomicity requirement for the index.
type Index struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	byURL    map[string]int64              // canonical url -> doc id, for replace-on-existing-URL
	docs     map[int64]*Document           // doc id -> document
	postings map[string]map[int64]*Posting // term -> doc id -> posting
	nextID   int64
}

// New constructs an empty index. logger may be nil.
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		logger:   logger,
		byURL:    make(map[string]int64),
		docs:     make(map[int64]*Document),
		postings: make(map[string]map[int64]*Posting),
	}
}

// AddDocument tokenizes title+body and updates postings and the document
// map. If url is already present the prior document is removed first
// (spec §4.7: "atomic replace" — both halves happen under one write lock).
func (ix *Index) AddDocument(url, title, body string, kind Kind) int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.byURL[url]; ok {
		ix.removeLocked(existing)
	}

	ix.nextID++
	id := ix.nextID

	titleTokens := tokenize(title)
	titleTerms := make(map[string]struct{}, len(titleTokens))
	for _, tk := range titleTokens {
		titleTerms[tk.term] = struct{}{}
	}

	combined := title + " " + body
	count := ix.indexTokens(id, tokenize(combined))

	doc := &Document{
		ID:         id,
		URL:        url,
		Title:      title,
		Body:       body,
		Kind:       kind,
		IndexedAt:  time.Now(),
		titleTerms: titleTerms,
		termCount:  count,
	}
	ix.docs[id] = doc
	ix.byURL[url] = id

	ix.logger.Debug("searchindex: document added", "doc_id", id, "url", url, "terms", count)
	return id
}

// indexTokens records postings for toks against doc id and returns the
// number of posting entries created (for the I3 invariant). Each posting's
// Count tracks every occurrence of the term; Positions samples at most
// maxPositionsPerTerm of their offsets.
func (ix *Index) indexTokens(id int64, toks []token) int {
	perTermPositions := make(map[string][]int)
	perTermCount := make(map[string]int)
	for _, tk := range toks {
		perTermCount[tk.term]++
		positions := perTermPositions[tk.term]
		if len(positions) < maxPositionsPerTerm {
			perTermPositions[tk.term] = append(positions, tk.offset)
		}
	}

	for term, positions := range perTermPositions {
		byDoc, ok := ix.postings[term]
		if !ok {
			byDoc = make(map[int64]*Posting)
			ix.postings[term] = byDoc
		}
		byDoc[id] = &Posting{DocID: id, Count: perTermCount[term], Positions: positions}
	}
	return len(perTermPositions)
}

// RemoveDocument removes all postings referencing id.
func (ix *Index) RemoveDocument(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id int64) {
	doc, ok := ix.docs[id]
	if !ok {
		return
	}
	for term, byDoc := range ix.postings {
		if _, ok := byDoc[id]; ok {
			delete(byDoc, id)
			if len(byDoc) == 0 {
				delete(ix.postings, term)
			}
		}
	}
	delete(ix.docs, id)
	delete(ix.byURL, doc.URL)
}

// Find returns doc ids carrying a posting for any of terms (candidates for
// OR evaluation by internal/query).
func (ix *Index) Find(terms []string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[int64]struct{})
	var out []int64
	for _, term := range terms {
		byDoc, ok := ix.postings[term]
		if !ok {
			continue
		}
		for id := range byDoc {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Postings returns the posting for term in doc id, or nil if absent.
func (ix *Index) Postings(term string, id int64) *Posting {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byDoc, ok := ix.postings[term]
	if !ok {
		return nil
	}
	return byDoc[id]
}

// DocFrequency returns the number of documents carrying a posting for term.
func (ix *Index) DocFrequency(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings[term])
}

// Document returns the stored document by id.
func (ix *Index) Document(id int64) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.docs[id]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// TitleContains reports whether term falls inside doc id's title span, used
// by the query engine's title: filter and title_boost.
func (ix *Index) TitleContains(id int64, term string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.docs[id]
	if !ok {
		return false
	}
	_, ok = doc.titleTerms[term]
	return ok
}

// IndexedAt returns when url was last indexed, if it is currently present.
func (ix *Index) IndexedAt(url string) (time.Time, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.byURL[url]
	if !ok {
		return time.Time{}, false
	}
	return ix.docs[id].IndexedAt, true
}

// DocCount returns the total number of indexed documents (N in the idf
// formula).
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Stats reports the index's size per spec §4.7.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	postings := 0
	for _, byDoc := range ix.postings {
		postings += len(byDoc)
	}
	return Stats{
		Documents: len(ix.docs),
		Terms:     len(ix.postings),
		Postings:  postings,
	}
}

// ExportedDocument is the serializable shape of one document, used by
// searchindex/snapshot (spec §4.7: snapshot serializes "{documents, terms}").
type ExportedDocument struct {
	ID         int64
	URL        string
	Title      string
	Body       string
	Kind       Kind
	IndexedAt  time.Time
	TitleTerms []string
	TermCount  int
}

// ExportedPosting is the serializable shape of one (term, document)
// posting.
type ExportedPosting struct {
	Term      string
	DocID     int64
	Count     int
	Positions []int
}

// State is the full exported shape of an Index, sufficient to rebuild it
// exactly via Import.
type State struct {
	NextID    int64
	Documents []ExportedDocument
	Postings  []ExportedPosting
}

// Export snapshots the index's full state under the read lock.
func (ix *Index) Export() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	state := State{NextID: ix.nextID}
	for _, doc := range ix.docs {
		terms := make([]string, 0, len(doc.titleTerms))
		for t := range doc.titleTerms {
			terms = append(terms, t)
		}
		state.Documents = append(state.Documents, ExportedDocument{
			ID: doc.ID, URL: doc.URL, Title: doc.Title, Body: doc.Body, Kind: doc.Kind,
			IndexedAt: doc.IndexedAt, TitleTerms: terms, TermCount: doc.termCount,
		})
	}
	for term, byDoc := range ix.postings {
		for docID, p := range byDoc {
			state.Postings = append(state.Postings, ExportedPosting{
				Term: term, DocID: docID, Count: p.Count, Positions: append([]int(nil), p.Positions...),
			})
		}
	}
	return state
}

// Import replaces the index's contents with state, discarding whatever was
// indexed before. Used on startup to restore the most recent disk snapshot.
func (ix *Index) Import(state State) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.nextID = state.NextID
	ix.docs = make(map[int64]*Document, len(state.Documents))
	ix.byURL = make(map[string]int64, len(state.Documents))
	ix.postings = make(map[string]map[int64]*Posting)

	for _, d := range state.Documents {
		titleTerms := make(map[string]struct{}, len(d.TitleTerms))
		for _, t := range d.TitleTerms {
			titleTerms[t] = struct{}{}
		}
		ix.docs[d.ID] = &Document{
			ID: d.ID, URL: d.URL, Title: d.Title, Body: d.Body, Kind: d.Kind,
			IndexedAt: d.IndexedAt, titleTerms: titleTerms, termCount: d.TermCount,
		}
		ix.byURL[d.URL] = d.ID
	}
	for _, p := range state.Postings {
		byDoc, ok := ix.postings[p.Term]
		if !ok {
			byDoc = make(map[int64]*Posting)
			ix.postings[p.Term] = byDoc
		}
		byDoc[p.DocID] = &Posting{DocID: p.DocID, Count: p.Count, Positions: p.Positions}
	}
}

// PostingSum returns the total number of posting entries across all terms,
// and the sum of each document's own term count, for the I3 invariant
// check: after any add/remove these two must be equal.
func (ix *Index) PostingSum() (postingEntries int, docTermCounts int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, byDoc := range ix.postings {
		postingEntries += len(byDoc)
	}
	for _, doc := range ix.docs {
		docTermCounts += doc.termCount
	}
	return
}
