package searchindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPostingInvariant(t *testing.T, ix *Index) {
	t.Helper()
	postingEntries, docTermCounts := ix.PostingSum()
	assert.Equal(t, docTermCounts, postingEntries, "posting sum must equal document-map term counts")
}

func TestAddDocument_TokenizesAndIndexes(t *testing.T) {
	ix := New(nil)
	id := ix.AddDocument("rdnt://shop.comp1.rednet/", "Widget Shop", "Buy the best widget here", KindPage)
	require.NotZero(t, id)

	ids := ix.Find([]string{"widget"})
	assert.Contains(t, ids, id)
	assertPostingInvariant(t, ix)
}

func TestAddDocument_DiscardsShortAndNumericTokens(t *testing.T) {
	ix := New(nil)
	ix.AddDocument("u1", "a title", "an i 42 1999 ab", KindPage)
	assert.Empty(t, ix.Find([]string{"a"}))
	assert.Empty(t, ix.Find([]string{"i"}))
	assert.Empty(t, ix.Find([]string{"42"}))
	assert.Empty(t, ix.Find([]string{"1999"}))
	assert.NotEmpty(t, ix.Find([]string{"ab"}))
}

func TestAddDocument_ReplacesExistingURL(t *testing.T) {
	ix := New(nil)
	first := ix.AddDocument("u1", "old title", "old body", KindPage)
	second := ix.AddDocument("u1", "new title", "new body", KindPage)

	assert.NotEqual(t, first, second)
	_, ok := ix.Document(first)
	assert.False(t, ok, "old document should be removed on replace")
	assert.Empty(t, ix.Find([]string{"old"}))
	assert.NotEmpty(t, ix.Find([]string{"new"}))
	assertPostingInvariant(t, ix)
}

func TestRemoveDocument_RemovesAllPostings(t *testing.T) {
	ix := New(nil)
	id := ix.AddDocument("u1", "hello world", "hello world again", KindPage)
	ix.RemoveDocument(id)

	assert.Empty(t, ix.Find([]string{"hello"}))
	assert.Empty(t, ix.Find([]string{"world"}))
	stats := ix.Stats()
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Terms)
	assert.Equal(t, 0, stats.Postings)
	assertPostingInvariant(t, ix)
}

func TestPositions_CappedAtTen(t *testing.T) {
	ix := New(nil)
	body := strings.Repeat("widget ", 20)
	id := ix.AddDocument("u1", "", body, KindPage)

	p := ix.Postings("widget", id)
	require.NotNil(t, p)
	assert.LessOrEqual(t, len(p.Positions), 10)
}

func TestTitleContains(t *testing.T) {
	ix := New(nil)
	id := ix.AddDocument("u1", "Widget Shop", "unrelated body text", KindPage)
	assert.True(t, ix.TitleContains(id, "widget"))
	assert.False(t, ix.TitleContains(id, "unrelated"))
}

func TestStats_ReflectsMultipleDocuments(t *testing.T) {
	ix := New(nil)
	ix.AddDocument("u1", "alpha", "alpha beta", KindPage)
	ix.AddDocument("u2", "beta", "beta gamma", KindPage)

	stats := ix.Stats()
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Terms) // alpha, beta, gamma
	assertPostingInvariant(t, ix)
}

func TestDocFrequency(t *testing.T) {
	ix := New(nil)
	ix.AddDocument("u1", "", "shared term", KindPage)
	ix.AddDocument("u2", "", "shared word", KindPage)
	assert.Equal(t, 2, ix.DocFrequency("shared"))
	assert.Equal(t, 1, ix.DocFrequency("term"))
}
