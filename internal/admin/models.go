// Package admin implements a read-only observability REST API: health and
// counters only, never reachable from an rdnt:// request. Dashboards are
// out of scope as a production feature; this ambient observability stack
// is carried regardless.
package admin

import "time"

// StatusResponse is a simple health probe response.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is a simple API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CPUStats is the host's CPU snapshot at stats-request time.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats is the host's memory snapshot at stats-request time.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// PeerStats summarizes the peer registry.
type PeerStats struct {
	Connected int `json:"connected"`
}

// DNSStats summarizes the distributed DNS subsystem.
type DNSStats struct {
	LocalRecords   int `json:"local_records"`
	CachedRecords  int `json:"cached_records"`
	ShadowedLocal  int `json:"shadowed_local"`
	ConvergenceRun int `json:"convergence_runs"`
}

// IndexStats summarizes the search index.
type IndexStats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}

// CrawlerStats summarizes crawl outcomes summed over every crawl the node
// has run.
type CrawlerStats struct {
	PagesFetched int `json:"pages_fetched"`
	PagesSkipped int `json:"pages_skipped"`
	Errors       int `json:"errors"`
}

// ServerStatsResponse is the full /api/v1/stats payload.
type ServerStatsResponse struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     time.Time    `json:"start_time"`
	CPU           CPUStats     `json:"cpu"`
	Memory        MemoryStats  `json:"memory"`
	Peers         PeerStats    `json:"peers"`
	DNS           DNSStats     `json:"dns"`
	Index         IndexStats   `json:"index"`
	Crawler       CrawlerStats `json:"crawler"`
}
