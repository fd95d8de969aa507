// Package config provides configuration loading and validation for a
// RedNet-Explorer node.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/rednet-node/main.go)
//  2. YAML config file (if specified with --config)
//  3. Environment variables (REDNET_* prefix)
//  4. Hardcoded defaults matching spec §6's listed defaults
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("REDNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values, taken from spec §6's
// "Environment knobs recognized by the core" table plus ambient defaults
// for knobs the distilled spec left to the implementation.
func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", 0)
	v.SetDefault("node.data_dir", "rednet-data")

	v.SetDefault("dns.cache_ttl_seconds", 300)
	v.SetDefault("dns.stale_grace_seconds", 30)
	v.SetDefault("dns.query_window_ms", 800)
	v.SetDefault("dns.verification_timeout_ms", 1000)
	v.SetDefault("dns.allow_unverified", false)
	v.SetDefault("dns.convergence_interval_seconds", 60)

	v.SetDefault("transport.send_timeout_ms", 5000)
	v.SetDefault("transport.retries", 2)
	v.SetDefault("transport.retry_backoff_ms", 200)
	v.SetDefault("transport.keepalive_interval_ms", 30000)
	v.SetDefault("transport.inbound_queue_size", 256)
	v.SetDefault("transport.bind_addr", "0.0.0.0:7000")
	v.SetDefault("transport.broadcast_addr", "255.255.255.255:7000")

	v.SetDefault("peer.freshness_window_seconds", 300)
	v.SetDefault("peer.idle_timeout_seconds", 120)
	v.SetDefault("peer.sweep_interval_seconds", 60)

	v.SetDefault("sandbox.wall_clock_ms", 5000)
	v.SetDefault("sandbox.output_bytes_max", 102400)
	v.SetDefault("sandbox.max_string_bytes", 10240)
	v.SetDefault("sandbox.memory_bytes_max", 1048576)
	v.SetDefault("sandbox.max_concurrent", 10)

	v.SetDefault("router.session_max_entries", 4096)
	v.SetDefault("router.session_ttl_seconds", 1800)

	v.SetDefault("index.positions_per_term_per_doc", 10)
	v.SetDefault("index.snapshot_interval_seconds", 300)
	v.SetDefault("index.snapshot_keep", 5)

	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.max_pages", 100)
	v.SetDefault("crawl.min_interval_ms", 100)
	v.SetDefault("crawl.timeout_ms", 5000)
	v.SetDefault("crawl.follow_external", false)
	v.SetDefault("crawl.max_host_fetches", 2)

	v.SetDefault("guard.global_qps", 1000.0)
	v.SetDefault("guard.global_burst", 2000)
	v.SetDefault("guard.peer_qps", 20.0)
	v.SetDefault("guard.peer_burst", 40)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load loads configuration from a YAML file (if path is non-empty) with
// environment variable and default overlays. This is the main entry point
// for loading configuration.
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}

// normalizeConfig validates and fills in any remaining defaults.
func normalizeConfig(cfg *Config) error {
	if cfg.Transport.SendTimeoutMS <= 0 {
		return errors.New("transport.send_timeout_ms must be positive")
	}
	if cfg.Sandbox.WallClockMS <= 0 {
		return errors.New("sandbox.wall_clock_ms must be positive")
	}
	if cfg.Sandbox.MaxConcurrent <= 0 {
		cfg.Sandbox.MaxConcurrent = 10
	}
	if cfg.Crawl.MaxDepth < 0 {
		return errors.New("crawl.max_depth must be >= 0")
	}
	if cfg.Index.PositionsPerTermPerDoc <= 0 {
		cfg.Index.PositionsPerTermPerDoc = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}
	if cfg.Node.DataDir == "" {
		cfg.Node.DataDir = "rednet-data"
	}
	if cfg.Admin.Enabled {
		if cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535 {
			return errors.New("admin.port must be 1..65535")
		}
		if cfg.Admin.Host == "" {
			cfg.Admin.Host = "127.0.0.1"
		}
	}
	return nil
}
