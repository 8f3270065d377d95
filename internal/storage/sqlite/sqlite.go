// Package sqlite keeps a participant's device-local state in a SQLite file:
// the registration pointer for each carpool and any unsubmitted draft.
// Nothing here is authoritative; the shared store is.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/pkordes/easy-carpool/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pointers (
    carpool_id TEXT PRIMARY KEY,
    blob       TEXT NOT NULL,
    saved_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
    carpool_id TEXT PRIMARY KEY,
    blob       TEXT NOT NULL,
    saved_at   INTEGER NOT NULL
);
`

// entry is the JSON blob stored per carpool in the pointers table.
type entry struct {
	Pointer  domain.RegistrationPointer `json:"pointer"`
	Snapshot domain.Registration        `json:"snapshot"`
}

// Cache is a device-local pointer cache and draft store.
// It satisfies service.PointerCache.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache file at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite.Open: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Load returns the pointer cached for carpoolID. A row that cannot be decoded,
// or that names another carpool, is deleted and reported as absent.
func (c *Cache) Load(ctx context.Context, carpoolID uuid.UUID) (domain.RegistrationPointer, bool, error) {
	e, ok, err := c.load(ctx, carpoolID)
	if err != nil || !ok {
		return domain.RegistrationPointer{}, false, err
	}
	return e.Pointer, true, nil
}

// Snapshot returns the registration last saved alongside the pointer, for
// showing something while the store is unreachable. It may be stale.
func (c *Cache) Snapshot(ctx context.Context, carpoolID uuid.UUID) (domain.Registration, bool, error) {
	e, ok, err := c.load(ctx, carpoolID)
	if err != nil || !ok || e.Snapshot.Kind == "" {
		return domain.Registration{}, false, err
	}
	return e.Snapshot, true, nil
}

// Save replaces the pointer and snapshot for ptr.CarpoolID.
func (c *Cache) Save(ctx context.Context, ptr domain.RegistrationPointer, snapshot domain.Registration) error {
	blob, err := json.Marshal(entry{Pointer: ptr, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("sqlite.Cache.Save: encode: %w", err)
	}
	if err := c.put(ctx, "pointers", ptr.CarpoolID, blob); err != nil {
		return fmt.Errorf("sqlite.Cache.Save: %w", err)
	}
	return nil
}

// Claim stores ptr and snapshot unless a pointer for ptr.CarpoolID is
// already cached, and reports whether it stored them.
func (c *Cache) Claim(ctx context.Context, ptr domain.RegistrationPointer, snapshot domain.Registration) (bool, error) {
	blob, err := json.Marshal(entry{Pointer: ptr, Snapshot: snapshot})
	if err != nil {
		return false, fmt.Errorf("sqlite.Cache.Claim: encode: %w", err)
	}
	res, err := c.db.ExecContext(ctx,
		"INSERT INTO pointers (carpool_id, blob, saved_at) VALUES (?, ?, ?) ON CONFLICT (carpool_id) DO NOTHING",
		ptr.CarpoolID.String(), string(blob), c.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite.Cache.Claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite.Cache.Claim: %w", err)
	}
	return n == 1, nil
}

// Clear forgets the pointer for carpoolID.
func (c *Cache) Clear(ctx context.Context, carpoolID uuid.UUID) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM pointers WHERE carpool_id = ?", carpoolID.String()); err != nil {
		return fmt.Errorf("sqlite.Cache.Clear: %w", err)
	}
	return nil
}

// SaveDraft checkpoints an unsubmitted registration for carpoolID,
// replacing any earlier draft.
func (c *Cache) SaveDraft(ctx context.Context, carpoolID uuid.UUID, draft domain.Registration) error {
	blob, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("sqlite.Cache.SaveDraft: encode: %w", err)
	}
	if err := c.put(ctx, "drafts", carpoolID, blob); err != nil {
		return fmt.Errorf("sqlite.Cache.SaveDraft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft for carpoolID. An undecodable draft is
// dropped and reported as absent.
func (c *Cache) LoadDraft(ctx context.Context, carpoolID uuid.UUID) (domain.Registration, bool, error) {
	blob, ok, err := c.get(ctx, "drafts", carpoolID)
	if err != nil || !ok {
		return domain.Registration{}, false, err
	}
	var draft domain.Registration
	if err := json.Unmarshal(blob, &draft); err != nil || draft.Kind == "" {
		return domain.Registration{}, false, c.ClearDraft(ctx, carpoolID)
	}
	return draft, true, nil
}

// ClearDraft removes the draft for carpoolID, typically after a successful submit.
func (c *Cache) ClearDraft(ctx context.Context, carpoolID uuid.UUID) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM drafts WHERE carpool_id = ?", carpoolID.String()); err != nil {
		return fmt.Errorf("sqlite.Cache.ClearDraft: %w", err)
	}
	return nil
}

func (c *Cache) load(ctx context.Context, carpoolID uuid.UUID) (entry, bool, error) {
	blob, ok, err := c.get(ctx, "pointers", carpoolID)
	if err != nil || !ok {
		return entry{}, false, err
	}

	var e entry
	if err := json.Unmarshal(blob, &e); err != nil || !wellFormed(e.Pointer, carpoolID) {
		if err := c.Clear(ctx, carpoolID); err != nil {
			return entry{}, false, err
		}
		return entry{}, false, nil
	}
	return e, true, nil
}

// get and put take the table name from the fixed set above, never from input.
func (c *Cache) get(ctx context.Context, table string, carpoolID uuid.UUID) ([]byte, bool, error) {
	var blob string
	err := c.db.QueryRowContext(ctx,
		"SELECT blob FROM "+table+" WHERE carpool_id = ?", carpoolID.String(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", table, err)
	}
	return []byte(blob), true, nil
}

func (c *Cache) put(ctx context.Context, table string, carpoolID uuid.UUID, blob []byte) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO "+table+" (carpool_id, blob, saved_at) VALUES (?, ?, ?) "+
			"ON CONFLICT (carpool_id) DO UPDATE SET blob = excluded.blob, saved_at = excluded.saved_at",
		carpoolID.String(), string(blob), c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

func wellFormed(p domain.RegistrationPointer, carpoolID uuid.UUID) bool {
	if p.CarpoolID != carpoolID || p.RegistrationID == uuid.Nil {
		return false
	}
	return p.Kind == domain.KindRide || p.Kind == domain.KindWaitlist
}
