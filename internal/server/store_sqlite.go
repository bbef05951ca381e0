package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/mapsync"
)

// --- Map squares ---

func (s *DocStore) Square(ctx context.Context, squareID string) (mapsync.Square, error) {
	sq := mapsync.Square{SquareID: squareID, Quadrants: map[expedition.QuadrantID]mapsync.Quadrant{}}
	var pathURL sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT region, status, path_image_url FROM squares WHERE square_id = ?`, squareID,
	).Scan(&sq.Region, &sq.Status, &pathURL)
	if errors.Is(err, sql.ErrNoRows) {
		return mapsync.Square{}, mapsync.ErrNotFound
	}
	if err != nil {
		return mapsync.Square{}, err
	}
	sq.PathImageURL = pathURL.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT quadrant, status, explored_at FROM square_quadrants WHERE square_id = ?`, squareID,
	)
	if err != nil {
		return mapsync.Square{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q          mapsync.Quadrant
			exploredAt sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.Status, &exploredAt); err != nil {
			return mapsync.Square{}, err
		}
		q.ExploredAt = parseStamp(exploredAt)
		sq.Quadrants[q.ID] = q
	}
	return sq, rows.Err()
}

// upsertSquare creates a square row or fills in a region left empty by
// RecordPathImage.
const upsertSquare = `INSERT INTO squares (square_id, region, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(square_id) DO UPDATE SET
	  region = CASE WHEN squares.region = '' THEN excluded.region ELSE squares.region END,
	  updated_at = excluded.updated_at`

// AdvanceQuadrant is a conditional upsert: a secured row is left untouched
// and an existing explored_at survives a write that carries none.
func (s *DocStore) AdvanceQuadrant(ctx context.Context, squareID, region string, q expedition.QuadrantID,
	status expedition.QuadrantStatus, exploredAt *time.Time) (bool, error) {
	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertSquare, squareID, region, s.stamp()); err != nil {
			return fmt.Errorf("upserting square: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO square_quadrants (square_id, quadrant, status, explored_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(square_id, quadrant) DO UPDATE SET
			   status = excluded.status,
			   explored_at = COALESCE(excluded.explored_at, square_quadrants.explored_at)
			 WHERE square_quadrants.status <> ?
			   AND (square_quadrants.status <> excluded.status OR excluded.explored_at IS NOT NULL)`,
			squareID, string(q), string(status), formatStamp(exploredAt), string(expedition.QuadrantSecured),
		)
		if err != nil {
			return fmt.Errorf("upserting quadrant: %w", err)
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		return nil
	})
	return changed, err
}

// SetQuadrant writes a quadrant status unconditionally. It is how squares
// get secured outside of expedition runs.
func (s *DocStore) SetQuadrant(ctx context.Context, squareID, region string, q expedition.QuadrantID, status expedition.QuadrantStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertSquare, squareID, region, s.stamp()); err != nil {
			return fmt.Errorf("upserting square: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO square_quadrants (square_id, quadrant, status) VALUES (?, ?, ?)
			 ON CONFLICT(square_id, quadrant) DO UPDATE SET status = excluded.status`,
			squareID, string(q), string(status),
		)
		return err
	})
}

// --- Inventory ---

func (s *DocStore) Quantity(ctx context.Context, characterID, itemName string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_items WHERE character_id = ? AND item_key = ?`,
		characterID, inventory.Key(itemName),
	).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

// Apply credits first so a swap can debit what it just returned. Stacks that
// reach zero are removed.
func (s *DocStore) Apply(ctx context.Context, characterID string, ch inventory.Change) error {
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range ch.Credits {
			category, err := jsonList(c.Category)
			if err != nil {
				return err
			}
			typ, err := jsonList(c.Type)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO inventory_items (character_id, item_key, item_name, quantity, category, type, obtain, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(character_id, item_key) DO UPDATE SET
				   quantity = inventory_items.quantity + excluded.quantity,
				   updated_at = excluded.updated_at`,
				characterID, inventory.Key(c.ItemName), c.ItemName, c.Quantity, category, typ, c.Reason, now,
			); err != nil {
				return fmt.Errorf("crediting %s: %w", c.ItemName, err)
			}
		}

		for _, d := range ch.Debits {
			res, err := tx.ExecContext(ctx,
				`UPDATE inventory_items SET quantity = quantity - ?, updated_at = ?
				 WHERE character_id = ? AND item_key = ? AND quantity >= ?`,
				d.Quantity, now, characterID, inventory.Key(d.ItemName), d.Quantity,
			)
			if err != nil {
				return fmt.Errorf("debiting %s: %w", d.ItemName, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("debiting %d %s: %w", d.Quantity, d.ItemName, inventory.ErrInsufficient)
			}
		}
		if len(ch.Debits) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM inventory_items WHERE character_id = ? AND quantity = 0`, characterID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func jsonList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// SetQuantity overwrites a stack. Seeding and tests use it.
func (s *DocStore) SetQuantity(ctx context.Context, characterID, itemName string, qty int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inventory_items (character_id, item_key, item_name, quantity, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(character_id, item_key) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at`,
		characterID, inventory.Key(itemName), itemName, qty, s.stamp(),
	)
	return err
}
