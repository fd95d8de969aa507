package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/rednetexplorer/core/internal/guard"
	"github.com/rednetexplorer/core/internal/searchindex"
)

const maxConsecutiveHostErrors = 5
const maxConcurrentPerHost = 2

// Crawler walks a site and feeds a searchindex.Index, per spec §4.9.
type Crawler struct {
	Fetcher Fetcher
	Index   *searchindex.Index
	Logger  *slog.Logger

	robots *robotsCache

	mu         sync.Mutex
	hostSem    map[string]chan struct{}
	hostLimit  map[string]*guard.TokenBucketLimiter // per-host politeness throttle, spec §4.9
	hostErrors map[string]int
	abandoned  map[string]bool
}

// New constructs a Crawler.
func New(fetcher Fetcher, idx *searchindex.Index, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		Fetcher:    fetcher,
		Index:      idx,
		Logger:     logger,
		robots:     newRobotsCache(fetcher),
		hostSem:    map[string]chan struct{}{},
		hostLimit:  map[string]*guard.TokenBucketLimiter{},
		hostErrors: map[string]int{},
		abandoned:  map[string]bool{},
	}
}

type queueItem struct {
	url   string
	depth int
}

// CrawlSite walks seedURL breadth-first up to limits, indexing every page
// it fetches successfully.
func (c *Crawler) CrawlSite(ctx context.Context, seedURL string, limits Limits) CrawlReport {
	limits = fillDefaults(limits)
	report := CrawlReport{SeedURL: seedURL}

	visited := map[string]bool{}
	queue := []queueItem{{url: seedURL, depth: 0}}

	for len(queue) > 0 && report.PagesFetched < limits.MaxPages {
		item := queue[0]
		queue = queue[1:]

		canon, err := Canonicalize(item.url)
		if err != nil || visited[canon] {
			continue
		}
		visited[canon] = true

		host := hostOf(canon)
		if c.isAbandoned(host) {
			continue
		}

		if !c.checkRobots(ctx, canon, &report) {
			continue
		}

		if indexedAt, ok := c.Index.IndexedAt(canon); ok && time.Since(indexedAt) < limits.MaxAge {
			continue
		}

		c.throttle(ctx, host, limits)

		result, err := c.fetch(ctx, canon, limits)
		c.releaseHostSlot(host)
		// spec §4.9: "a page that returns 404 or times out is skipped and
		// counted... A host that returns >=5 consecutive errors is
		// abandoned" — both failure modes count toward the per-host streak.
		if err != nil || result.Status == 404 || result.Status >= 500 {
			c.recordHostError(host)
			report.PagesSkipped++
			report.Errors++
			continue
		}
		c.clearHostError(host)

		if result.Status != 200 {
			report.PagesSkipped++
			continue
		}

		c.index(canon, result)
		report.PagesFetched++

		if item.depth >= limits.MaxDepth {
			continue
		}
		for _, link := range ExtractLinks(canon, result.Body) {
			if !limits.FollowExternal && !SameHost(canon, link) {
				continue
			}
			queue = append(queue, queueItem{url: link, depth: item.depth + 1})
		}
	}

	return report
}

func fillDefaults(l Limits) Limits {
	d := DefaultLimits()
	if l.MaxDepth == 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxPages == 0 {
		l.MaxPages = d.MaxPages
	}
	if l.MinInterval == 0 {
		l.MinInterval = d.MinInterval
	}
	if l.Timeout == 0 {
		l.Timeout = d.Timeout
	}
	return l
}

func (c *Crawler) checkRobots(ctx context.Context, canon string, report *CrawlReport) bool {
	u, err := url.Parse(canon)
	if err != nil {
		return false
	}
	allowed, _ := c.robots.allow(ctx, u.Host, u.Path)
	if !allowed {
		report.Excluded = append(report.Excluded, canon)
		return false
	}
	return true
}

// throttle enforces both the crawl's own min_interval floor and the host's
// robots.txt Crawl-delay, whichever is larger, via a
// guard.TokenBucketLimiter (internal/guard) parameterized per host.
func (c *Crawler) throttle(ctx context.Context, host string, limits Limits) {
	c.acquireHostSlot(ctx, host)

	_, crawlDelay := c.robots.allow(ctx, host, "/")
	wait := limits.MinInterval
	if crawlDelay > wait {
		wait = crawlDelay
	}

	limiter := c.limiterFor(host, wait)
	for !limiter.Allow(host) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait / 4):
		}
	}
}

func (c *Crawler) limiterFor(host string, interval time.Duration) *guard.TokenBucketLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.hostLimit[host]; ok {
		return l
	}
	rate := 1.0
	if interval > 0 {
		rate = 1.0 / interval.Seconds()
	}
	l := guard.NewTokenBucketLimiter(guard.TokenBucketConfig{
		Rate: rate, Burst: 1, CleanupInterval: time.Hour, MaxEntries: 1,
	})
	c.hostLimit[host] = l
	return l
}

func (c *Crawler) acquireHostSlot(ctx context.Context, host string) {
	sem := c.semFor(host)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
	}
}

// releaseHostSlot frees the per-host concurrency slot taken by
// acquireHostSlot. Safe to call even if the slot was never acquired
// (ctx was cancelled before the fetch started).
func (c *Crawler) releaseHostSlot(host string) {
	sem := c.semFor(host)
	select {
	case <-sem:
	default:
	}
}

func (c *Crawler) semFor(host string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.hostSem[host]
	if !ok {
		sem = make(chan struct{}, maxConcurrentPerHost)
		c.hostSem[host] = sem
	}
	return sem
}

func (c *Crawler) fetch(ctx context.Context, canon string, limits Limits) (FetchResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()
	return c.Fetcher.Fetch(fetchCtx, canon)
}

func (c *Crawler) index(canon string, result FetchResult) {
	title, body := extractTitleAndBody(result.Body)
	kind := searchindex.KindPage
	if result.ContentType != "" && result.ContentType != "text/rwml" && result.ContentType != "text/x-handler" {
		kind = searchindex.KindFile
	}
	c.Index.AddDocument(canon, title, body, kind)
}

func (c *Crawler) recordHostError(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostErrors[host]++
	if c.hostErrors[host] >= maxConsecutiveHostErrors {
		c.abandoned[host] = true
		c.Logger.Warn("crawler: abandoning host after consecutive errors", "host", host)
	}
}

func (c *Crawler) clearHostError(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostErrors[host] = 0
}

func (c *Crawler) isAbandoned(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned[host]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
