package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameTrie_ExactMatch(t *testing.T) {
	tr := NewNameTrie()
	tr.Add("shop.comp42.rednet", false)
	assert.True(t, tr.Contains("shop.comp42.rednet"))
	assert.False(t, tr.Contains("other.comp42.rednet"))
}

func TestNameTrie_WildcardMatchesSubdomains(t *testing.T) {
	tr := NewNameTrie()
	tr.Add("comp42.rednet", true)
	assert.True(t, tr.Contains("comp42.rednet"))
	assert.True(t, tr.Contains("shop.comp42.rednet"))
	assert.False(t, tr.Contains("comp99.rednet"))
}

func TestNameTrie_NonWildcardDoesNotMatchSubdomains(t *testing.T) {
	tr := NewNameTrie()
	tr.Add("comp42.rednet", false)
	assert.True(t, tr.Contains("comp42.rednet"))
	assert.False(t, tr.Contains("shop.comp42.rednet"))
}

func TestNameTrie_CaseInsensitive(t *testing.T) {
	tr := NewNameTrie()
	tr.Add("Shop.Comp42.Rednet", false)
	assert.True(t, tr.Contains("shop.comp42.rednet"))
}

func TestNameTrie_Size(t *testing.T) {
	tr := NewNameTrie()
	tr.Add("a.rednet", false)
	tr.Add("b.rednet", false)
	tr.Add("a.rednet", false)
	assert.Equal(t, 2, tr.Size())
}

func TestNodeSet_AddContainsRemove(t *testing.T) {
	s := NewNodeSet()
	assert.False(t, s.Contains(7))
	s.Add(7)
	assert.True(t, s.Contains(7))
	assert.Equal(t, 1, s.Size())
	s.Remove(7)
	assert.False(t, s.Contains(7))
}
