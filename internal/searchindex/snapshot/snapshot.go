// Package snapshot persists an internal/searchindex.Index to the DNS
// registry's SQLite database (a second migrated table, index_snapshots) so
// the index survives a node restart without reindexing from scratch (spec
// §4.7: "periodic serialized snapshot to disk", serializing "{documents,
// terms}").
package snapshot

import (
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/rednetexplorer/core/internal/searchindex"
)

// Save serializes idx's full state via goccy/go-json and writes it to db,
// pruning older snapshots beyond keep (keep <= 0 disables pruning).
func Save(db *store.DB, idx *searchindex.Index, keep int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	state := idx.Export()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := db.SaveSnapshot(store.SnapshotRow{
		CreatedAt:     time.Now(),
		DocumentCount: len(state.Documents),
		TermCount:     countTerms(state),
		Payload:       data,
	}); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	if keep > 0 {
		if err := db.PruneSnapshots(keep); err != nil {
			logger.Warn("searchindex snapshot: prune failed", "error", err)
		}
	}

	logger.Info("searchindex snapshot saved", "documents", len(state.Documents))
	return nil
}

func countTerms(state searchindex.State) int {
	seen := make(map[string]struct{})
	for _, p := range state.Postings {
		seen[p.Term] = struct{}{}
	}
	return len(seen)
}

// Restore loads the most recent snapshot from db into idx, replacing
// whatever idx currently holds. Returns false if no snapshot exists.
func Restore(db *store.DB, idx *searchindex.Index) (bool, error) {
	row, ok, err := db.LatestSnapshot()
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}

	var state searchindex.State
	if err := json.Unmarshal(row.Payload, &state); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	idx.Import(state)
	return true, nil
}
