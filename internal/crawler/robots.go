package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const crawlerUserAgent = "RedNetExplorerBot"

// robotsCache fetches and parses robots.txt once per host, per spec §4.9:
// "Before fetching a host's content the first time, the crawler requests
// robots.txt from that host."
type robotsCache struct {
	fetcher Fetcher
	mu      sync.Mutex
	byHost  map[string]*robotstxt.RobotsData
}

func newRobotsCache(fetcher Fetcher) *robotsCache {
	return &robotsCache{fetcher: fetcher, byHost: map[string]*robotstxt.RobotsData{}}
}

// allow reports whether path on host may be fetched, and the Crawl-delay
// the host's robots.txt requests (zero if none). Unmatched rules default
// to allow per spec §4.9.
func (c *robotsCache) allow(ctx context.Context, host, path string) (bool, time.Duration) {
	data := c.dataFor(ctx, host)
	if data == nil {
		return true, 0
	}
	group := data.FindGroup(crawlerUserAgent)
	if group == nil {
		return true, 0
	}
	return group.Test(path), group.CrawlDelay
}

func (c *robotsCache) dataFor(ctx context.Context, host string) *robotstxt.RobotsData {
	c.mu.Lock()
	if data, ok := c.byHost[host]; ok {
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	robotsURL := (&url.URL{Scheme: "rdnt", Host: host, Path: "/robots.txt"}).String()
	result, err := c.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		// A robots.txt fetch that fails (e.g. times out) denies the whole
		// host for this call and is not cached, so the next attempt asks
		// again.
		deny, _ := robotstxt.FromString("User-agent: *\nDisallow: /")
		return deny
	}

	var data *robotstxt.RobotsData
	if err == nil && result.Status == 200 {
		data, _ = robotstxt.FromBytes(result.Body)
	} else {
		// no robots.txt present: FromBytes on an empty document allows
		// everything, matching spec §4.9's "unmatched rules default to allow".
		data, _ = robotstxt.FromBytes(nil)
	}

	c.mu.Lock()
	c.byHost[host] = data
	c.mu.Unlock()
	return data
}
