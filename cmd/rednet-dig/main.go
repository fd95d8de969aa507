// Command rednet-dig resolves a single RedNet-Explorer name against the
// live bus and prints what it found: a one-shot query tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/rednetexplorer/core/internal/transport"
)

func main() {
	var (
		bindAddr      = flag.String("bind", "0.0.0.0:0", "local bind address")
		broadcastAddr = flag.String("broadcast", "255.255.255.255:9797", "bus broadcast address")
		clientNodeID  = flag.Int("node-id", 999000, "ephemeral node id for this query client")
		timeout       = flag.Duration("timeout", 2*time.Second, "resolution timeout")
		verified      = flag.Bool("verified", false, "require the answer's owner to reply to a verification ping before accepting it")
		quiet         = flag.Bool("quiet", false, "suppress output (exit status indicates success)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rednet-dig [flags] <name>")
		os.Exit(2)
	}
	name := flag.Arg(0)

	result, err := lookup(*bindAddr, *broadcastAddr, *clientNodeID, name, *timeout, *verified)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "rednet-dig: %v\n", err)
		}
		os.Exit(1)
	}
	if *quiet {
		return
	}

	printResult(name, result)
}

func lookup(bindAddr, broadcastAddr string, clientNodeID int, name string, timeout time.Duration, requireVerified bool) (names.Result, error) {
	dbPath, err := os.CreateTemp("", "rednet-dig-*.db")
	if err != nil {
		return names.Result{}, fmt.Errorf("scratch db: %w", err)
	}
	dbPath.Close()
	defer os.Remove(dbPath.Name())

	db, err := store.Open(dbPath.Name())
	if err != nil {
		return names.Result{}, fmt.Errorf("open scratch store: %w", err)
	}
	defer db.Close()

	bus, err := transport.NewUDPBus(bindAddr, broadcastAddr, 0)
	if err != nil {
		return names.Result{}, fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	codec := busproto.NewCodec(clientNodeID, busproto.StaticSecret{})
	adapter := transport.NewAdapter(bus, codec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	adapter.Start(ctx)
	defer adapter.Close()

	local, err := names.NewLocalRegistry(clientNodeID, db, nil)
	if err != nil {
		return names.Result{}, fmt.Errorf("scratch registry: %w", err)
	}
	cache := names.NewCache(16)
	resolver := names.NewResolver(clientNodeID, local, cache, adapter, codec, nil)
	resolver.AllowUnverified = !requireVerified
	if timeout > 0 {
		resolver.QueryWindow = timeout
		resolver.VerifyTimeout = timeout
	}

	return resolver.Lookup(ctx, name)
}

func printResult(name string, r names.Result) {
	fmt.Printf("name=%s node=%d subdomain=%q owner=%d verified=%t\n",
		name, r.Record.NodeID, r.Record.Subdomain, r.Record.OwnerNodeID, r.Verified)
	if r.Record.ExpiresAt != nil {
		fmt.Printf("expires_at=%s\n", r.Record.ExpiresAt.Format(time.RFC3339))
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s: %s\n", w.Name, w.Message)
	}
}
