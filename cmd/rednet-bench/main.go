// Command rednet-bench drives concurrent name resolutions against a live
// bus and reports throughput and latency percentiles.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"flag"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/rednetexplorer/core/internal/transport"
)

func main() {
	var (
		bindAddr      = flag.String("bind", "0.0.0.0:0", "local bind address")
		broadcastAddr = flag.String("broadcast", "255.255.255.255:9797", "bus broadcast address")
		clientNodeID  = flag.Int("node-id", 999001, "ephemeral node id for this benchmark client")
		name          = flag.String("name", "shop.comp1234.rednet", "name to resolve repeatedly")
		concurrency   = flag.Int("concurrency", 50, "number of concurrent workers")
		requests      = flag.Int("requests", 2000, "total number of lookups")
		timeout       = flag.Duration("timeout", 2*time.Second, "per-lookup timeout")
	)
	flag.Parse()

	if err := run(*bindAddr, *broadcastAddr, *clientNodeID, *name, *concurrency, *requests, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "rednet-bench:", err)
		os.Exit(1)
	}
}

func run(bindAddr, broadcastAddr string, clientNodeID int, name string, concurrency, total int, timeout time.Duration) error {
	dbPath, err := os.CreateTemp("", "rednet-bench-*.db")
	if err != nil {
		return fmt.Errorf("scratch db: %w", err)
	}
	dbPath.Close()
	defer os.Remove(dbPath.Name())

	db, err := store.Open(dbPath.Name())
	if err != nil {
		return fmt.Errorf("open scratch store: %w", err)
	}
	defer db.Close()

	bus, err := transport.NewUDPBus(bindAddr, broadcastAddr, 0)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	codec := busproto.NewCodec(clientNodeID, busproto.StaticSecret{})
	adapter := transport.NewAdapter(bus, codec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter.Start(ctx)
	defer adapter.Close()

	local, err := names.NewLocalRegistry(clientNodeID, db, nil)
	if err != nil {
		return fmt.Errorf("scratch registry: %w", err)
	}
	cache := names.NewCache(1)
	resolver := names.NewResolver(clientNodeID, local, cache, adapter, codec, nil)
	resolver.AllowUnverified = true
	resolver.QueryWindow = timeout
	resolver.VerifyTimeout = timeout

	if concurrency < 1 {
		concurrency = 1
	}
	if total < 1 {
		total = 1
	}
	per := total / concurrency
	rem := total % concurrency

	lat := make([]float64, 0, total)
	var latMu sync.Mutex
	var failures int64

	t0 := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		n := per
		if i < rem {
			n++
		}
		if n <= 0 {
			continue
		}
		wg.Add(1)
		go func(count int) {
			defer wg.Done()
			for j := 0; j < count; j++ {
				reqCtx, reqCancel := context.WithTimeout(ctx, timeout)
				start := time.Now()
				// Bypass the cache so each lookup measures a real bus
				// round trip rather than a cache hit.
				cache.Clear()
				_, err := resolver.Lookup(reqCtx, name)
				reqCancel()
				if err != nil {
					latMu.Lock()
					failures++
					latMu.Unlock()
					continue
				}
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				latMu.Lock()
				lat = append(lat, ms)
				latMu.Unlock()
			}
		}(n)
	}
	wg.Wait()
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Printf("no successful lookups (failures=%d)\n", failures)
		return nil
	}
	sort.Float64s(lat)
	qps := float64(len(lat)) / elapsed

	fmt.Printf("name=%q concurrency=%d requests=%d failures=%d\n", name, concurrency, len(lat), failures)
	fmt.Printf("elapsed_s=%.3f qps=%.1f\n", elapsed, qps)
	fmt.Printf("latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n",
		percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), lat[0], lat[len(lat)-1])
	return nil
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
