package names

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rednetexplorer/core/internal/names/store"
)

// ErrNameTaken is returned by Register when the name is already locally
// registered to a different owner (spec §4.4: "register ... refuses a name
// already held locally by another owner").
var ErrNameTaken = errors.New("names: name already registered")

// ErrNotFound is returned by Unregister for a name with no local record.
var ErrNotFound = errors.New("names: no such local record")

// LocalRegistry is the authoritative store of names this node owns (spec
// §4.4: "Registry operations"). It persists through store.DB, adapting the
// teacher's internal/database package from configuration rows to DNS rows.
type LocalRegistry struct {
	NodeID int
	Store  *store.DB
	Logger *slog.Logger

	mu      sync.RWMutex
	records map[string]Record
}

// NewLocalRegistry loads existing local records from db into memory.
func NewLocalRegistry(nodeID int, db *store.DB, logger *slog.Logger) (*LocalRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := &LocalRegistry{
		NodeID:  nodeID,
		Store:   db,
		Logger:  logger,
		records: make(map[string]Record),
	}

	rows, err := db.List()
	if err != nil {
		return nil, fmt.Errorf("load local registry: %w", err)
	}
	for _, row := range rows {
		reg.records[row.Name] = recordFromRow(row)
	}
	return reg, nil
}

// Register validates and persists a new authoritative name (spec §4.4:
// "register(name_spec) -> Record | Error"). subdomain is validated against
// label rules; alias names are validated the same way via ParseName.
func (r *LocalRegistry) Register(raw string, ttl time.Duration) (Record, error) {
	name, err := ParseName(raw)
	if err != nil {
		return Record{}, err
	}
	if name.Kind == KindComputer && name.NodeID != r.NodeID {
		return Record{}, fmt.Errorf("computer-form name %q does not belong to this node: %w", raw, ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[name.Raw]; ok && existing.OwnerNodeID != r.NodeID {
		return Record{}, fmt.Errorf("%q: %w", raw, ErrNameTaken)
	}

	now := time.Now()
	rec := Record{
		Name:         name.Raw,
		NodeID:       r.NodeID,
		Subdomain:    name.Subdomain,
		RegisteredAt: now,
		OwnerNodeID:  r.NodeID,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}

	if err := r.Store.Upsert(rowFromRecord(rec)); err != nil {
		return Record{}, fmt.Errorf("register %q: %w", raw, err)
	}
	r.records[name.Raw] = rec
	r.Logger.Info("name registered", "name", name.Raw, "node_id", r.NodeID)
	return rec, nil
}

// Unregister removes a locally authoritative name.
func (r *LocalRegistry) Unregister(raw string) error {
	name, err := ParseName(raw)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[name.Raw]; !ok {
		return fmt.Errorf("%q: %w", raw, ErrNotFound)
	}
	if err := r.Store.Delete(name.Raw); err != nil {
		return fmt.Errorf("unregister %q: %w", raw, err)
	}
	delete(r.records, name.Raw)
	r.Logger.Info("name unregistered", "name", name.Raw)
	return nil
}

// ListLocal returns every locally authoritative record.
func (r *LocalRegistry) ListLocal() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Lookup returns the local record for name, if this node is authoritative
// for it.
func (r *LocalRegistry) Lookup(raw string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[raw]
	return rec, ok
}

// MarkShadowed flags a locally-registered alias as shadowed by a winning
// network answer (spec §4.4, convergence) and persists the flag.
func (r *LocalRegistry) MarkShadowed(raw string, shadowed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[raw]
	if !ok {
		return fmt.Errorf("%q: %w", raw, ErrNotFound)
	}
	rec.Shadowed = shadowed
	if err := r.Store.Upsert(rowFromRecord(rec)); err != nil {
		return fmt.Errorf("mark shadowed %q: %w", raw, err)
	}
	r.records[raw] = rec
	return nil
}

func rowFromRecord(rec Record) store.RecordRow {
	row := store.RecordRow{
		Name:         rec.Name,
		NodeID:       rec.NodeID,
		Subdomain:    rec.Subdomain,
		RegisteredAt: rec.RegisteredAt,
		OwnerNodeID:  rec.OwnerNodeID,
		Shadowed:     rec.Shadowed,
	}
	if rec.ExpiresAt != nil {
		row.ExpiresAt = sql.NullTime{Time: *rec.ExpiresAt, Valid: true}
	}
	if rec.VerifiedAt != nil {
		row.VerifiedAt = sql.NullTime{Time: *rec.VerifiedAt, Valid: true}
	}
	return row
}

func recordFromRow(row store.RecordRow) Record {
	rec := Record{
		Name:         row.Name,
		NodeID:       row.NodeID,
		Subdomain:    row.Subdomain,
		RegisteredAt: row.RegisteredAt,
		OwnerNodeID:  row.OwnerNodeID,
		Shadowed:     row.Shadowed,
	}
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time
		rec.ExpiresAt = &t
	}
	if row.VerifiedAt.Valid {
		t := row.VerifiedAt.Time
		rec.VerifiedAt = &t
	}
	return rec
}
