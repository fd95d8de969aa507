// Package store provides SQLite-backed persistence for locally authoritative
// DNS registrations: an embedded-migrations, WAL-mode Open pattern applied
// to DNS registry storage rather than configuration.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RecordRow is the persisted shape of a DNS record. It mirrors
// names.Record's fields without importing package names, to avoid a
// parent/child import cycle.
type RecordRow struct {
	Name         string
	NodeID       int
	Subdomain    string
	RegisteredAt time.Time
	ExpiresAt    sql.NullTime
	OwnerNodeID  int
	VerifiedAt   sql.NullTime
	Shadowed     bool
}

// DB wraps a SQLite database connection holding the local DNS registry and
// the search index's disk snapshot table.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open opens or creates a SQLite database at path, running migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn}
	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func (db *DB) runMigrations() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(db.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Upsert inserts or replaces a local record, keyed by Name.
func (db *DB) Upsert(r RecordRow) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO dns_records (name, node_id, subdomain, registered_at, expires_at, owner_node_id, verified_at, shadowed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			node_id=excluded.node_id,
			subdomain=excluded.subdomain,
			registered_at=excluded.registered_at,
			expires_at=excluded.expires_at,
			owner_node_id=excluded.owner_node_id,
			verified_at=excluded.verified_at,
			shadowed=excluded.shadowed
	`, r.Name, r.NodeID, r.Subdomain, r.RegisteredAt, r.ExpiresAt, r.OwnerNodeID, r.VerifiedAt, r.Shadowed)
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", r.Name, err)
	}
	return nil
}

// Delete removes a local record by name.
func (db *DB) Delete(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.Exec(`DELETE FROM dns_records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete record %q: %w", name, err)
	}
	return nil
}

// List returns every locally authoritative record.
func (db *DB) List() ([]RecordRow, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`SELECT name, node_id, subdomain, registered_at, expires_at, owner_node_id, verified_at, shadowed FROM dns_records`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.Name, &r.NodeID, &r.Subdomain, &r.RegisteredAt, &r.ExpiresAt, &r.OwnerNodeID, &r.VerifiedAt, &r.Shadowed); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SnapshotRow is one saved search-index snapshot.
type SnapshotRow struct {
	ID            int64
	CreatedAt     time.Time
	DocumentCount int
	TermCount     int
	Payload       []byte
}

// SaveSnapshot persists a search-index snapshot blob, as produced by
// searchindex/snapshot's goccy/go-json encoder.
func (db *DB) SaveSnapshot(row SnapshotRow) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`
		INSERT INTO index_snapshots (created_at, document_count, term_count, payload)
		VALUES (?, ?, ?, ?)
	`, row.CreatedAt, row.DocumentCount, row.TermCount, row.Payload)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the most recently saved snapshot, if any.
func (db *DB) LatestSnapshot() (SnapshotRow, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var r SnapshotRow
	err := db.conn.QueryRow(`
		SELECT id, created_at, document_count, term_count, payload
		FROM index_snapshots ORDER BY created_at DESC LIMIT 1
	`).Scan(&r.ID, &r.CreatedAt, &r.DocumentCount, &r.TermCount, &r.Payload)
	if err == sql.ErrNoRows {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	return r, true, nil
}

// PruneSnapshots deletes all but the keep most recent snapshots.
func (db *DB) PruneSnapshots(keep int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		DELETE FROM index_snapshots WHERE id NOT IN (
			SELECT id FROM index_snapshots ORDER BY created_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// Get returns a single local record by name.
func (db *DB) Get(name string) (RecordRow, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var r RecordRow
	err := db.conn.QueryRow(`SELECT name, node_id, subdomain, registered_at, expires_at, owner_node_id, verified_at, shadowed FROM dns_records WHERE name = ?`, name).
		Scan(&r.Name, &r.NodeID, &r.Subdomain, &r.RegisteredAt, &r.ExpiresAt, &r.OwnerNodeID, &r.VerifiedAt, &r.Shadowed)
	if err == sql.ErrNoRows {
		return RecordRow{}, false, nil
	}
	if err != nil {
		return RecordRow{}, false, fmt.Errorf("get record %q: %w", name, err)
	}
	return r, true, nil
}
