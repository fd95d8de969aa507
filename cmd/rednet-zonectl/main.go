// Command rednet-zonectl inspects a node's local DNS registrations
// directly from its on-disk store.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rednetexplorer/core/internal/names/store"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rednet-zonectl path/to/rednet.db")
		os.Exit(2)
	}
	path := flag.Arg(0)

	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := db.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list records: %v\n", err)
		os.Exit(1)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	fmt.Printf("RECORDS: %d\n", len(rows))
	for _, r := range rows {
		expires := "never"
		if r.ExpiresAt.Valid {
			expires = r.ExpiresAt.Time.Format("2006-01-02T15:04:05Z07:00")
		}
		verified := "no"
		if r.VerifiedAt.Valid {
			verified = r.VerifiedAt.Time.Format("2006-01-02T15:04:05Z07:00")
		}
		shadow := ""
		if r.Shadowed {
			shadow = " SHADOWED"
		}
		fmt.Printf("  %-40s node=%-8d subdomain=%-16q owner=%-8d expires=%-25s verified=%s%s\n",
			r.Name, r.NodeID, r.Subdomain, r.OwnerNodeID, expires, verified, shadow)
	}
}
