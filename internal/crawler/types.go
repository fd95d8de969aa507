// Package crawler implements spec §4.9's site walker: it fetches documents
// through the same rdnt:// request path a handler-driven browser uses,
// respects robots.txt, and feeds internal/searchindex.
package crawler

import (
	"context"
	"time"
)

// Limits bounds one CrawlSite invocation (spec §4.9).
type Limits struct {
	MaxDepth       int
	MaxPages       int
	MinInterval    time.Duration
	Timeout        time.Duration
	FollowExternal bool
	MaxAge         time.Duration // re-fetch threshold for URLs already indexed
}

// DefaultLimits returns spec §4.9's stated defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:    3,
		MaxPages:    100,
		MinInterval: 100 * time.Millisecond,
		Timeout:     5 * time.Second,
	}
}

// CrawlReport summarizes one CrawlSite run.
type CrawlReport struct {
	SeedURL      string
	PagesFetched int
	PagesSkipped int
	Errors       int
	Excluded     []string // URLs skipped due to robots.txt disallow rules
}

// FetchResult is one page fetch outcome.
type FetchResult struct {
	Status      int
	Body        []byte
	ContentType string
}

// Fetcher retrieves a document by rdnt:// URL, the same request path a
// router-served browser client uses (spec §3: "the crawler fetches
// documents through the same request path a browser uses").
type Fetcher interface {
	Fetch(ctx context.Context, rdntURL string) (FetchResult, error)
}
