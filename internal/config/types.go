// Package config provides configuration loading for the RedNet-Explorer
// core node using Viper. Configuration is loaded from an optional YAML file
// with automatic environment variable binding, layered flags > file > env >
// defaults.
//
// Environment variables use the REDNET_ prefix and underscore-separated
// keys, mirroring spec §6's dotted knob names:
//   - REDNET_DNS_CACHE_TTL_SECONDS -> dns.cache_ttl_seconds
//   - REDNET_SANDBOX_WALL_CLOCK_MS -> sandbox.wall_clock_ms
package config

import (
	"os"
	"strings"
)

// NodeConfig holds this process's identity and storage location.
type NodeConfig struct {
	// ID is the stable integer node identifier assigned by the host
	// environment (spec §3 "Node identity"). 0 means "not yet assigned";
	// callers must supply one via flag or env before starting a node.
	ID int `yaml:"id" mapstructure:"id"`
	// DataDir holds the SQLite-backed DNS registry and index snapshot.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// DNSConfig controls the distributed DNS resolver, registry, and cache
// (spec §4.4, knobs from §6).
type DNSConfig struct {
	CacheTTLSeconds          int `yaml:"cache_ttl_seconds"          mapstructure:"cache_ttl_seconds"`
	StaleGraceSeconds        int `yaml:"stale_grace_seconds"        mapstructure:"stale_grace_seconds"`
	QueryWindowMS            int `yaml:"query_window_ms"            mapstructure:"query_window_ms"`
	VerificationTimeoutMS    int `yaml:"verification_timeout_ms"    mapstructure:"verification_timeout_ms"`
	AllowUnverified          bool `yaml:"allow_unverified"          mapstructure:"allow_unverified"`
	ConvergenceIntervalSec   int `yaml:"convergence_interval_seconds" mapstructure:"convergence_interval_seconds"`
}

// TransportConfig controls the datagram bus adapter (spec §4.2, §6).
type TransportConfig struct {
	SendTimeoutMS       int `yaml:"send_timeout_ms"       mapstructure:"send_timeout_ms"`
	Retries             int `yaml:"retries"               mapstructure:"retries"`
	RetryBackoffMS      int `yaml:"retry_backoff_ms"      mapstructure:"retry_backoff_ms"`
	KeepaliveIntervalMS int `yaml:"keepalive_interval_ms" mapstructure:"keepalive_interval_ms"`
	InboundQueueSize    int `yaml:"inbound_queue_size"    mapstructure:"inbound_queue_size"`
	// Bind/Broadcast configure the UDP broadcast Bus implementation
	// (internal/transport.UDPBus), the concrete stand-in for the host's
	// wireless broadcast primitive (spec §1).
	BindAddr      string `yaml:"bind_addr"      mapstructure:"bind_addr"`
	BroadcastAddr string `yaml:"broadcast_addr" mapstructure:"broadcast_addr"`
}

// PeerConfig controls the peer/connection registry (spec §4.3, §5).
type PeerConfig struct {
	FreshnessWindowSec int `yaml:"freshness_window_seconds" mapstructure:"freshness_window_seconds"`
	IdleTimeoutSec     int `yaml:"idle_timeout_seconds"     mapstructure:"idle_timeout_seconds"`
	SweepIntervalSec   int `yaml:"sweep_interval_seconds"   mapstructure:"sweep_interval_seconds"`
}

// SandboxConfig controls handler script execution limits (spec §4.5, §6).
type SandboxConfig struct {
	WallClockMS    int `yaml:"wall_clock_ms"     mapstructure:"wall_clock_ms"`
	OutputBytesMax int `yaml:"output_bytes_max"  mapstructure:"output_bytes_max"`
	MaxStringBytes int `yaml:"max_string_bytes"  mapstructure:"max_string_bytes"`
	MemoryBytesMax int `yaml:"memory_bytes_max"  mapstructure:"memory_bytes_max"`
	MaxConcurrent  int `yaml:"max_concurrent"    mapstructure:"max_concurrent"`
}

// RouterConfig controls the request router and session manager (spec §4.6).
type RouterConfig struct {
	SessionMaxEntries int `yaml:"session_max_entries" mapstructure:"session_max_entries"`
	SessionTTLSeconds int `yaml:"session_ttl_seconds" mapstructure:"session_ttl_seconds"`
}

// IndexConfig controls the search index (spec §4.7, §6).
type IndexConfig struct {
	PositionsPerTermPerDoc int `yaml:"positions_per_term_per_doc" mapstructure:"positions_per_term_per_doc"`
	SnapshotIntervalSec    int `yaml:"snapshot_interval_seconds"  mapstructure:"snapshot_interval_seconds"`
	SnapshotKeep           int `yaml:"snapshot_keep"              mapstructure:"snapshot_keep"`
}

// CrawlConfig controls the crawler (spec §4.9, §6).
type CrawlConfig struct {
	MaxDepth        int  `yaml:"max_depth"         mapstructure:"max_depth"`
	MaxPages        int  `yaml:"max_pages"         mapstructure:"max_pages"`
	MinIntervalMS   int  `yaml:"min_interval_ms"   mapstructure:"min_interval_ms"`
	TimeoutMS       int  `yaml:"timeout_ms"        mapstructure:"timeout_ms"`
	FollowExternal  bool `yaml:"follow_external"   mapstructure:"follow_external"`
	MaxHostFetches  int  `yaml:"max_host_fetches"  mapstructure:"max_host_fetches"`
}

// GuardConfig controls the default network guard's rate limiting (spec §5,
// §6 "Network guard (external): check_request(envelope)").
type GuardConfig struct {
	GlobalQPS   float64 `yaml:"global_qps"   mapstructure:"global_qps"`
	GlobalBurst int     `yaml:"global_burst" mapstructure:"global_burst"`
	PeerQPS     float64 `yaml:"peer_qps"     mapstructure:"peer_qps"`
	PeerBurst   int     `yaml:"peer_burst"   mapstructure:"peer_burst"`
}

// LoggingConfig contains logging settings, unchanged in shape from the
// teacher's internal/logging.Config.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"`
}

// AdminConfig controls the read-only observability HTTP API
// (internal/admin — ambient, never reachable from an rdnt:// request).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
}

// Config is the root configuration structure for a RedNet-Explorer node.
type Config struct {
	Node      NodeConfig      `yaml:"node"      mapstructure:"node"`
	DNS       DNSConfig       `yaml:"dns"       mapstructure:"dns"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Peer      PeerConfig      `yaml:"peer"      mapstructure:"peer"`
	Sandbox   SandboxConfig   `yaml:"sandbox"   mapstructure:"sandbox"`
	Router    RouterConfig    `yaml:"router"    mapstructure:"router"`
	Index     IndexConfig     `yaml:"index"     mapstructure:"index"`
	Crawl     CrawlConfig     `yaml:"crawl"     mapstructure:"crawl"`
	Guard     GuardConfig     `yaml:"guard"     mapstructure:"guard"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	Admin     AdminConfig     `yaml:"admin"     mapstructure:"admin"`
}

// ResolveConfigPath determines the config file path from flag or environment,
// preferring an explicit flag value.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("REDNET_CONFIG")); v != "" {
		return v
	}
	return ""
}
