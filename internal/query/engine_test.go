package query

import (
	"testing"

	"github.com/rednetexplorer/core/internal/searchindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex() *searchindex.Index {
	ix := searchindex.New(nil)
	ix.AddDocument("rdnt://shop.comp1.rednet/", "Blue Widget Shop", "buy the best blue widget here, cheap", searchindex.KindPage)
	ix.AddDocument("rdnt://other.comp2.rednet/", "Gadget Store", "gadgets and gizmos for everyone", searchindex.KindPage)
	ix.AddDocument("rdnt://files.comp3.rednet/manual.pdf", "Widget Manual", "instructions for assembling your widget", searchindex.KindFile)
	return ix
}

func TestEngine_SingleTermMatch(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("gadget")
	require.Len(t, results, 1)
}

func TestEngine_AndGroupRequiresAllTerms(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("blue widget")
	require.Len(t, results, 1)
}

func TestEngine_OrUnionsGroups(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("gadget OR manual")
	assert.Len(t, results, 2)
}

func TestEngine_NegationExcludes(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("widget -manual")
	require.Len(t, results, 1)
	doc, _ := e.Index.Document(results[0].DocID)
	assert.Equal(t, "Blue Widget Shop", doc.Title)
}

func TestEngine_SiteFilter(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("widget site:files.comp3.rednet")
	require.Len(t, results, 1)
	doc, _ := e.Index.Document(results[0].DocID)
	assert.Contains(t, doc.URL, "files.comp3.rednet")
}

func TestEngine_TypeFilter(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("widget type:file")
	require.Len(t, results, 1)
	doc, _ := e.Index.Document(results[0].DocID)
	assert.Equal(t, searchindex.KindFile, doc.Kind)
}

func TestEngine_TitleBoostRanksTitleMatchHigher(t *testing.T) {
	e := New(buildTestIndex())
	// widget occurs twice in each matching document but sits in the title
	// only for "Blue Widget Shop" and "Widget Manual"; the unrelated fifth
	// document keeps idf(widget) = log(5/4) above zero.
	e.Index.AddDocument("rdnt://notes.comp4.rednet/", "Assorted Notes", "widget list with a second widget entry", searchindex.KindPage)
	e.Index.AddDocument("rdnt://misc.comp5.rednet/", "Misc", "nothing relevant here", searchindex.KindPage)
	results := e.Search("widget")
	require.Len(t, results, 3)
	last, _ := e.Index.Document(results[2].DocID)
	assert.Equal(t, "Assorted Notes", last.Title)
	assert.Greater(t, results[0].Score, results[2].Score)
}

func TestEngine_PhraseRequiresConsecutivePositions(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search(`"blue widget"`)
	require.Len(t, results, 1)

	noMatch := e.Search(`"widget blue"`)
	assert.Empty(t, noMatch)
}

func TestEngine_SnippetExtractsAroundEarliestTerm(t *testing.T) {
	e := New(buildTestIndex())
	results := e.Search("gadget")
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Snippet, "gadget")
}

func TestEngine_EmptyQueryReturnsNoResults(t *testing.T) {
	e := New(buildTestIndex())
	assert.Empty(t, e.Search(""))
}

func TestEngine_NoMatchingTermReturnsNoResults(t *testing.T) {
	e := New(buildTestIndex())
	assert.Empty(t, e.Search("nonexistentterm"))
}
