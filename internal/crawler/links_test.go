package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks_ResolvesRelativeHrefs(t *testing.T) {
	body := []byte(`<a href="page2.rwml">next</a> <a href='/about.rwml'>about</a>`)
	links := ExtractLinks("rdnt://shop.comp1.rednet/blog/", body)
	assert.Contains(t, links, "rdnt://shop.comp1.rednet/blog/page2.rwml")
	assert.Contains(t, links, "rdnt://shop.comp1.rednet/about.rwml")
}

func TestExtractLinks_SkipsFragmentOnlyLinks(t *testing.T) {
	body := []byte(`<a href="#top">top</a>`)
	links := ExtractLinks("rdnt://shop.comp1.rednet/", body)
	assert.Empty(t, links)
}

func TestExtractTitleAndBody(t *testing.T) {
	title, body := extractTitleAndBody([]byte(`<title>Widget Shop</title><p>Buy widgets</p>`))
	assert.Equal(t, "Widget Shop", title)
	assert.Contains(t, body, "Buy widgets")
}
