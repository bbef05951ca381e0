package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/mapsync"
	"github.com/playperu/expedition/internal/party"
)

var ErrNotFound = errors.New("not found")

const timeLayout = "2006-01-02T15:04:05.000Z"

// DocStore keeps everything the service persists in one SQLite database.
// Parties are JSONB documents guarded by a version column; map squares,
// inventories, characters and sessions are plain rows.
type DocStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ party.Repository  = (*DocStore)(nil)
	_ party.Characters  = (*DocStore)(nil)
	_ mapsync.Store     = (*DocStore)(nil)
	_ inventory.Store   = (*DocStore)(nil)
	_ inventory.Catalog = (*DocStore)(nil)
	_ Sessions          = (*DocStore)(nil)
)

// NewDocStore wraps a migrated database.
func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db, now: time.Now}
}

func (s *DocStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseStamp(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatStamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// Check pings the database for the health endpoint.
func (s *DocStore) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *DocStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
