package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rednetexplorer/core/internal/searchindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]FetchResult
	calls int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]FetchResult{}}
}

func (f *fakeFetcher) set(url string, result FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = result
}

func (f *fakeFetcher) Fetch(ctx context.Context, rdntURL string) (FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r, ok := f.pages[rdntURL]; ok {
		return r, nil
	}
	return FetchResult{Status: 404}, nil
}

func TestCrawlSite_FollowsLinksAndIndexes(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("rdnt://shop.comp1.rednet/", FetchResult{
		Status: 200, ContentType: "text/rwml",
		Body: []byte(`<title>Home</title><a href="page2.rwml">next</a>`),
	})
	fetcher.set("rdnt://shop.comp1.rednet/page2.rwml", FetchResult{
		Status: 200, ContentType: "text/rwml",
		Body: []byte(`<title>Page 2</title>widget content`),
	})
	fetcher.set("rdnt://shop.comp1.rednet/robots.txt", FetchResult{Status: 404})

	idx := searchindex.New(nil)
	c := New(fetcher, idx, nil)

	report := c.CrawlSite(context.Background(), "rdnt://shop.comp1.rednet/", Limits{
		MaxDepth: 2, MaxPages: 10, MinInterval: time.Millisecond,
	})

	assert.Equal(t, 2, report.PagesFetched)
	assert.Equal(t, 2, idx.Stats().Documents)
}

func TestCrawlSite_Returns404CountsAsSkipped(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("rdnt://shop.comp1.rednet/robots.txt", FetchResult{Status: 404})

	idx := searchindex.New(nil)
	c := New(fetcher, idx, nil)

	report := c.CrawlSite(context.Background(), "rdnt://shop.comp1.rednet/missing", Limits{MinInterval: time.Millisecond})
	assert.Equal(t, 0, report.PagesFetched)
	assert.Equal(t, 1, report.PagesSkipped)
}

func TestCrawlSite_RobotsDisallowExcludesURL(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("rdnt://shop.comp1.rednet/robots.txt", FetchResult{
		Status: 200,
		Body:   []byte("User-agent: *\nDisallow: /private\n"),
	})
	fetcher.set("rdnt://shop.comp1.rednet/private/page.rwml", FetchResult{
		Status: 200, Body: []byte(`<title>Secret</title>`),
	})

	idx := searchindex.New(nil)
	c := New(fetcher, idx, nil)

	report := c.CrawlSite(context.Background(), "rdnt://shop.comp1.rednet/private/page.rwml", Limits{MinInterval: time.Millisecond})
	assert.Equal(t, 0, report.PagesFetched)
	require.Len(t, report.Excluded, 1)
}

func TestCrawlSite_FetchErrorIsCountedAndSkipped(t *testing.T) {
	idx := searchindex.New(nil)
	c := New(erroringFetcher{}, idx, nil)

	report := c.CrawlSite(context.Background(), "rdnt://down.comp1.rednet/a", Limits{
		MinInterval: time.Millisecond, MaxPages: 20,
	})
	assert.Equal(t, 0, report.PagesFetched)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.PagesSkipped)
}

func TestCrawlSite_AbandonsHostAfterConsecutiveErrors(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("rdnt://down.comp1.rednet/robots.txt", FetchResult{Status: 404})
	for i := 0; i < 10; i++ {
		fetcher.set("rdnt://down.comp1.rednet/page0.rwml", FetchResult{
			Status: 200, Body: []byte(linksToManyPages()),
		})
	}
	idx := searchindex.New(nil)
	c := New(fetcher, idx, nil) // every linked page 404s: not seeded above

	report := c.CrawlSite(context.Background(), "rdnt://down.comp1.rednet/page0.rwml", Limits{
		MinInterval: time.Millisecond, MaxPages: 20,
	})
	assert.LessOrEqual(t, report.PagesSkipped-report.Errors, 1, "host should be abandoned once 5 consecutive errors accumulate")
	assert.True(t, c.isAbandoned("down.comp1.rednet"))
}

func linksToManyPages() string {
	out := "<title>Hub</title>"
	for i := 1; i <= 10; i++ {
		out += `<a href="missing` + string(rune('0'+i)) + `.rwml">x</a>`
	}
	return out
}

func TestCrawlSite_DoesNotFollowExternalLinksByDefault(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("rdnt://a.rednet/", FetchResult{
		Status: 200, Body: []byte(`<a href="rdnt://b.rednet/">external</a>`),
	})
	fetcher.set("rdnt://a.rednet/robots.txt", FetchResult{Status: 404})
	fetcher.set("rdnt://b.rednet/", FetchResult{Status: 200, Body: []byte(`<title>B</title>`)})

	idx := searchindex.New(nil)
	c := New(fetcher, idx, nil)

	c.CrawlSite(context.Background(), "rdnt://a.rednet/", Limits{MinInterval: time.Millisecond})
	_, ok := idx.IndexedAt("rdnt://b.rednet/")
	assert.False(t, ok)
}

type erroringFetcher struct{}

func (erroringFetcher) Fetch(ctx context.Context, rdntURL string) (FetchResult, error) {
	// robots.txt is simply absent; every page fetch fails.
	if rdntURL == "rdnt://down.comp1.rednet/robots.txt" {
		return FetchResult{Status: 404}, nil
	}
	return FetchResult{}, context.DeadlineExceeded
}
