// Command rednet-node runs a long-lived RedNet-Explorer node: the
// distributed DNS resolver/registry, the sandboxed request router, the
// search index with its crawler, and the read-only admin API, all wired
// over one datagram bus connection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/rednetexplorer/core/internal/admin"
	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/config"
	"github.com/rednetexplorer/core/internal/crawler"
	"github.com/rednetexplorer/core/internal/guard"
	"github.com/rednetexplorer/core/internal/logging"
	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/rednetexplorer/core/internal/peer"
	"github.com/rednetexplorer/core/internal/query"
	"github.com/rednetexplorer/core/internal/router"
	"github.com/rednetexplorer/core/internal/sandbox"
	"github.com/rednetexplorer/core/internal/searchindex"
	"github.com/rednetexplorer/core/internal/searchindex/snapshot"
	"github.com/rednetexplorer/core/internal/transport"
)

// mounts collects repeated -mount name=directory flags.
type mounts []string

func (m *mounts) String() string { return strings.Join(*m, ",") }
func (m *mounts) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var siteDirs mounts
	configPath := flag.String("config", "", "path to YAML config file")
	nodeID := flag.Int("node-id", 0, "override node.id from config/environment")
	flag.Var(&siteDirs, "mount", "name=directory pair to serve as a local site; repeatable")
	flag.Parse()

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "rednet-node: config:", err)
		os.Exit(1)
	}
	if *nodeID != 0 {
		cfg.Node.ID = *nodeID
	}
	if cfg.Node.ID == 0 {
		fmt.Fprintln(os.Stderr, "rednet-node: node.id must be set via --node-id, REDNET_NODE_ID, or config")
		os.Exit(1)
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	if err := run(cfg, siteDirs, logger); err != nil {
		logger.Error("rednet-node exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, siteDirs []string, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.Open(filepath.Join(cfg.Node.DataDir, "rednet.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	codec := busproto.NewCodec(cfg.Node.ID, busproto.StaticSecret{})

	bus, err := transport.NewUDPBus(cfg.Transport.BindAddr, cfg.Transport.BroadcastAddr, 0)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	adapter := transport.NewAdapter(bus, codec, logger)
	netGuard := guard.New(guard.Config{
		GlobalRate:  cfg.Guard.GlobalQPS,
		GlobalBurst: cfg.Guard.GlobalBurst,
		// Only a global and a per-peer tier are configurable; the prefix
		// tier sits between them at a quarter of the global budget
		// (guard.DefaultConfig, by comparison, sets its prefix tier at a
		// fifth of its global tier).
		PrefixRate:  cfg.Guard.GlobalQPS / 4,
		PrefixBurst: cfg.Guard.GlobalBurst / 4,
		NodeRate:    cfg.Guard.PeerQPS,
		NodeBurst:   cfg.Guard.PeerBurst,
	})
	adapter.Guard = netGuard

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter.Start(ctx)

	local, err := names.NewLocalRegistry(cfg.Node.ID, db, logger)
	if err != nil {
		return fmt.Errorf("load local registry: %w", err)
	}

	cache := names.NewCache(4096)
	cache.DefaultTTL = time.Duration(cfg.DNS.CacheTTLSeconds) * time.Second
	cache.StaleGrace = time.Duration(cfg.DNS.StaleGraceSeconds) * time.Second

	resolver := names.NewResolver(cfg.Node.ID, local, cache, adapter, codec, logger)
	resolver.QueryWindow = time.Duration(cfg.DNS.QueryWindowMS) * time.Millisecond
	resolver.VerifyTimeout = time.Duration(cfg.DNS.VerificationTimeoutMS) * time.Millisecond
	resolver.AllowUnverified = cfg.DNS.AllowUnverified

	convergence := names.NewConvergence(local, resolver, adapter, codec, logger)
	convergence.Interval = time.Duration(cfg.DNS.ConvergenceIntervalSec) * time.Second
	convergence.Start(ctx)
	defer convergence.Stop()

	peers := peer.NewRegistry(adapter, codec, logger)
	peers.FreshnessWindow = time.Duration(cfg.Peer.FreshnessWindowSec) * time.Second
	peers.IdleTimeout = time.Duration(cfg.Peer.IdleTimeoutSec) * time.Second
	go peers.RunSweeper(ctx)

	sb := sandbox.New(sandbox.Limits{
		WallClock:      time.Duration(cfg.Sandbox.WallClockMS) * time.Millisecond,
		OutputBytes:    cfg.Sandbox.OutputBytesMax,
		MaxStringBytes: cfg.Sandbox.MaxStringBytes,
		MemoryBytes:    cfg.Sandbox.MemoryBytesMax,
	}, logger)
	// sandboxGate bounds concurrent request dispatch (static and dynamic
	// alike) at sandbox.max_concurrent; the limit is named for the
	// sandboxed invocations it primarily protects, which are the
	// expensive half of a dispatch.
	sandboxGate := make(chan struct{}, cfg.Sandbox.MaxConcurrent)

	rt := router.New(local, codec, sb)
	rt.Sessions = router.NewSessionManager(cfg.Router.SessionMaxEntries)
	rt.Sessions.TTL = time.Duration(cfg.Router.SessionTTLSeconds) * time.Second
	rt.Guard = netGuard

	hostsSite := false
	for _, spec := range siteDirs {
		name, dir, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("invalid -mount %q, want name=directory", spec)
		}
		root, err := loadSiteDir(dir)
		if err != nil {
			return fmt.Errorf("mount %q: %w", name, err)
		}
		if _, err := local.Register(name, 0); err != nil && !errors.Is(err, names.ErrNameTaken) {
			return fmt.Errorf("register %q: %w", name, err)
		}
		rt.Mount(name, root)
		hostsSite = true
		logger.Info("site mounted", "name", name, "dir", dir)
	}

	idx := searchindex.New(logger)
	if restored, err := snapshot.Restore(db, idx); err != nil {
		logger.Warn("index snapshot restore failed", "error", err)
	} else if restored {
		logger.Info("index snapshot restored", "documents", idx.DocCount())
	}
	go runSnapshotLoop(ctx, db, idx, cfg, logger)

	qe := query.New(idx)

	fetcher := &nodeFetcher{
		resolver: resolver,
		adapter:  adapter,
		codec:    codec,
		timeout:  time.Duration(cfg.Crawl.TimeoutMS) * time.Millisecond,
	}
	cr := crawler.New(fetcher, idx, logger)
	var crawlStats crawlCounters

	adminSources := admin.Sources{
		Peers:       peers,
		Local:       local,
		Cache:       cache,
		Convergence: convergence,
		Index:       idx,
		Crawler:     crawlStats.snapshot,
	}

	adapter.OnReceive(func(source int, env busproto.Envelope) {
		switch env.Type {
		case busproto.TypePing:
			respondPong(ctx, adapter, codec, source, env)
		case busproto.TypeDNSQuery:
			respondDNSQuery(adapter, codec, local, env)
		case busproto.TypeDNSWithdraw:
			handleDNSWithdraw(cache, env)
		case busproto.TypePeerAnnounce:
			handlePeerAnnounce(peers, source, env)
		case busproto.TypeRequest:
			handleRequest(ctx, adapter, rt, codec, qe, sandboxGate, source, env)
		case busproto.TypeCrawlRequest:
			handleCrawlRequest(ctx, cr, &crawlStats, logger, env)
		}
	})

	if err := peers.Announce(peer.Descriptor{Class: localClass(hostsSite), Version: "1"}); err != nil {
		logger.Warn("peer announce failed", "error", err)
	}

	var srv *admin.Server
	if cfg.Admin.Enabled {
		srv = admin.New(fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port), adminSources, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server failed", "error", err)
			}
		}()
	}

	logger.Info("rednet-node started", "node_id", cfg.Node.ID, "bind", cfg.Transport.BindAddr)
	<-ctx.Done()
	logger.Info("rednet-node shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if err := snapshot.Save(db, idx, cfg.Index.SnapshotKeep, logger); err != nil {
		logger.Warn("final index snapshot failed", "error", err)
	}
	return nil
}

// localClass reports this node's initial inferred peer class: every node
// answers dns_query for whatever it is authoritative over, so it is at
// least a "dns" peer; a node with mounted content is a "hybrid".
func localClass(hostsSite bool) peer.Class {
	if hostsSite {
		return peer.ClassHybrid
	}
	return peer.ClassDNS
}

func respondPong(ctx context.Context, adapter *transport.Adapter, codec *busproto.Codec, source int, req busproto.Envelope) {
	resp, err := codec.CreateResponse(source, busproto.StatusOK, nil, nil, nil, req.ID)
	if err != nil {
		return
	}
	_, _ = adapter.Send(ctx, source, resp, transport.SendOptions{ExpectsResponse: false})
}

func respondDNSQuery(adapter *transport.Adapter, codec *busproto.Codec, local *names.LocalRegistry, req busproto.Envelope) {
	var p busproto.DNSQueryPayload
	if err := busproto.DecodePayload(req, &p); err != nil {
		return
	}
	rec, ok := local.Lookup(p.Name)
	if !ok || rec.Shadowed {
		return
	}

	var expires time.Time
	if rec.ExpiresAt != nil {
		expires = *rec.ExpiresAt
	}
	answer, err := codec.Encode(busproto.TypeDNSAnswer, busproto.DNSAnswerPayload{
		Name:         rec.Name,
		NodeID:       rec.NodeID,
		Subdomain:    rec.Subdomain,
		RegisteredAt: rec.RegisteredAt,
		ExpiresAt:    expires,
		OwnerNodeID:  rec.OwnerNodeID,
	}, nil)
	if err != nil {
		return
	}
	_ = adapter.Broadcast(answer)
}

func handleDNSWithdraw(cache *names.Cache, req busproto.Envelope) {
	var p busproto.DNSWithdrawPayload
	if err := busproto.DecodePayload(req, &p); err != nil {
		return
	}
	cache.Evict(p.Name)
}

func handlePeerAnnounce(peers *peer.Registry, source int, req busproto.Envelope) {
	var p busproto.PeerAnnouncePayload
	if err := busproto.DecodePayload(req, &p); err != nil {
		return
	}
	peers.OnPeerSeen(peer.Descriptor{
		NodeID:       source,
		Class:        peer.Class(p.Class),
		Version:      p.Version,
		Capabilities: p.Capabilities,
		Info:         p.Info,
	})
}

func handleRequest(ctx context.Context, adapter *transport.Adapter, rt *router.Router, codec *busproto.Codec, qe *query.Engine, gate chan struct{}, source int, req busproto.Envelope) {
	var payload busproto.RequestPayload
	if err := busproto.DecodePayload(req, &payload); err != nil {
		return
	}

	if requestTargetName(payload.URL) == "search" {
		respondSearch(ctx, adapter, codec, qe, req, payload)
		return
	}

	select {
	case gate <- struct{}{}:
		defer func() { <-gate }()
	case <-ctx.Done():
		return
	}

	resp, ok := rt.Dispatch(source, req)
	if !ok {
		return
	}
	_, _ = adapter.Send(ctx, source, resp, transport.SendOptions{ExpectsResponse: false})
}

// respondSearch answers requests to the special-cased "search" name with
// the query engine's ranked results, the always-available counterpart to
// spec §4.8's search UI. "search" is not in names.reservedWords, so the
// name itself is not barred from registration.
func respondSearch(ctx context.Context, adapter *transport.Adapter, codec *busproto.Codec, qe *query.Engine, req busproto.Envelope, payload busproto.RequestPayload) {
	q := ""
	if u, err := url.Parse(payload.URL); err == nil {
		q = u.Query().Get("q")
	}
	results := qe.Search(q)
	body, err := gojson.Marshal(results)
	if err != nil {
		return
	}
	resp, err := codec.CreateResponse(req.Source, busproto.StatusOK, body, map[string]string{"content-type": "application/json"}, nil, req.ID)
	if err != nil {
		return
	}
	_, _ = adapter.Send(ctx, req.Source, resp, transport.SendOptions{ExpectsResponse: false})
}

func requestTargetName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Host
	if host == "" {
		host = u.Path
	}
	return strings.ToLower(host)
}

func handleCrawlRequest(ctx context.Context, cr *crawler.Crawler, stats *crawlCounters, logger *slog.Logger, req busproto.Envelope) {
	var p busproto.CrawlRequestPayload
	if err := busproto.DecodePayload(req, &p); err != nil || p.SeedURL == "" {
		return
	}
	go func() {
		report := cr.CrawlSite(ctx, p.SeedURL, crawler.DefaultLimits())
		stats.add(report)
		logger.Info("crawl_request handled", "seed", p.SeedURL, "fetched", report.PagesFetched, "skipped", report.PagesSkipped, "errors", report.Errors)
	}()
}

// crawlCounters accumulates crawl outcomes across every CrawlSite run this
// node has performed, for admin-surface exposure.
type crawlCounters struct {
	fetched atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64
}

func (c *crawlCounters) add(r crawler.CrawlReport) {
	c.fetched.Add(int64(r.PagesFetched))
	c.skipped.Add(int64(r.PagesSkipped))
	c.errs.Add(int64(r.Errors))
}

func (c *crawlCounters) snapshot() admin.CrawlerStats {
	return admin.CrawlerStats{
		PagesFetched: int(c.fetched.Load()),
		PagesSkipped: int(c.skipped.Load()),
		Errors:       int(c.errs.Load()),
	}
}

// nodeFetcher implements crawler.Fetcher by resolving the target host name
// and issuing a normal request envelope, the same path a browsing client
// takes (spec §4.9: "the crawler fetches documents through the same
// request path a browser uses").
type nodeFetcher struct {
	resolver *names.Resolver
	adapter  *transport.Adapter
	codec    *busproto.Codec
	timeout  time.Duration
}

func (f *nodeFetcher) Fetch(ctx context.Context, rdntURL string) (crawler.FetchResult, error) {
	u, err := url.Parse(rdntURL)
	if err != nil {
		return crawler.FetchResult{}, err
	}

	result, err := f.resolver.Lookup(ctx, u.Host)
	if err != nil {
		return crawler.FetchResult{}, err
	}

	reqEnv, err := f.codec.CreateRequest(result.Record.NodeID, busproto.RequestPayload{Method: "GET", URL: rdntURL})
	if err != nil {
		return crawler.FetchResult{}, err
	}

	timeout := f.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	resp, err := f.adapter.Send(ctx, result.Record.NodeID, reqEnv, transport.SendOptions{
		Timeout:         timeout,
		Retries:         1,
		ExpectsResponse: true,
	})
	if err != nil {
		return crawler.FetchResult{}, err
	}

	switch resp.Type {
	case busproto.TypeResponse:
		var p busproto.ResponsePayload
		if err := busproto.DecodePayload(resp, &p); err != nil {
			return crawler.FetchResult{}, err
		}
		return crawler.FetchResult{Status: int(p.Status), Body: p.Body, ContentType: p.Headers["content-type"]}, nil
	case busproto.TypeError:
		var p busproto.ErrorPayload
		if err := busproto.DecodePayload(resp, &p); err != nil {
			return crawler.FetchResult{}, err
		}
		return crawler.FetchResult{Status: int(p.Status)}, nil
	default:
		return crawler.FetchResult{}, fmt.Errorf("unexpected response envelope type %q", resp.Type)
	}
}

// loadSiteDir reads every regular file under dir into a MapRoot, keyed by
// its slash-separated path relative to dir (spec §4.6's document root).
func loadSiteDir(dir string) (*router.MapRoot, error) {
	root := router.NewMapRoot()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		root.Files["/"+filepath.ToSlash(rel)] = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

func runSnapshotLoop(ctx context.Context, db *store.DB, idx *searchindex.Index, cfg *config.Config, logger *slog.Logger) {
	interval := time.Duration(cfg.Index.SnapshotIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := snapshot.Save(db, idx, cfg.Index.SnapshotKeep, logger); err != nil {
				logger.Warn("periodic index snapshot failed", "error", err)
			}
		}
	}
}
