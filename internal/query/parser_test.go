package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleTerm(t *testing.T) {
	q := Parse("widget")
	require.Len(t, q.Groups, 1)
	require.Len(t, q.Groups[0].Clauses, 1)
	assert.Equal(t, []string{"widget"}, q.Groups[0].Clauses[0].Words)
	assert.False(t, q.Groups[0].Clauses[0].Negated)
}

func TestParse_NegatedTerm(t *testing.T) {
	q := Parse("widget -spam")
	require.Len(t, q.Groups[0].Clauses, 2)
	assert.True(t, q.Groups[0].Clauses[1].Negated)
	assert.Equal(t, []string{"spam"}, q.Groups[0].Clauses[1].Words)
}

func TestParse_NotKeyword(t *testing.T) {
	q := Parse("widget NOT spam")
	require.Len(t, q.Groups[0].Clauses, 2)
	assert.True(t, q.Groups[0].Clauses[1].Negated)
}

func TestParse_OrSplitsGroups(t *testing.T) {
	q := Parse("widget OR gadget")
	require.Len(t, q.Groups, 2)
	assert.Equal(t, []string{"widget"}, q.Groups[0].Clauses[0].Words)
	assert.Equal(t, []string{"gadget"}, q.Groups[1].Clauses[0].Words)
}

func TestParse_AndGroupWithinOr(t *testing.T) {
	q := Parse("widget blue OR gadget red")
	require.Len(t, q.Groups, 2)
	assert.Len(t, q.Groups[0].Clauses, 2)
	assert.Len(t, q.Groups[1].Clauses, 2)
}

func TestParse_Phrase(t *testing.T) {
	q := Parse(`"blue widget"`)
	require.Len(t, q.Groups[0].Clauses, 1)
	c := q.Groups[0].Clauses[0]
	assert.True(t, c.Phrase)
	assert.Equal(t, []string{"blue", "widget"}, c.Words)
}

func TestParse_SiteFilter(t *testing.T) {
	q := Parse("widget site:shop.comp1.rednet")
	assert.Equal(t, "shop.comp1.rednet", q.Filters.Site)
	assert.Len(t, q.Groups[0].Clauses, 1)
}

func TestParse_TypeFilter(t *testing.T) {
	q := Parse("type:file widget")
	assert.Equal(t, "file", q.Filters.Type)
}

func TestParse_TitleFilterWithQuotedValue(t *testing.T) {
	q := Parse(`title:"blue widget" extra`)
	assert.Equal(t, "blue widget", q.Filters.Title)
	require.Len(t, q.Groups[0].Clauses, 1)
	assert.Equal(t, []string{"extra"}, q.Groups[0].Clauses[0].Words)
}

func TestParse_EmptyQuery(t *testing.T) {
	q := Parse("   ")
	assert.Empty(t, q.Groups)
}
