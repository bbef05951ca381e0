package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/party"
)

// Party documents live in the parties table as JSONB. Status, leader and
// square are copied into columns so they can be queried without decoding.

func (s *DocStore) Create(ctx context.Context, p *expedition.Party) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	now := s.stamp()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO parties (id, status, leader_id, square_id, version, created_at, updated_at, data)
		 VALUES (?, ?, ?, ?, 1, ?, ?, jsonb(?))`,
		p.PartyID, string(p.Status), p.LeaderID, p.Square, p.CreatedAt.UTC().Format(timeLayout), now, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting party: %w", err)
	}
	p.Version = 1
	return nil
}

func (s *DocStore) Get(ctx context.Context, id string) (*expedition.Party, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, json(data) FROM parties WHERE id = ?`, id,
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, party.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var p expedition.Party
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding party %s: %w", id, err)
	}
	p.Version = version
	return &p, nil
}

func (s *DocStore) Update(ctx context.Context, p *expedition.Party) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE parties
		 SET status = ?, leader_id = ?, square_id = ?, version = version + 1, updated_at = ?, data = jsonb(?)
		 WHERE id = ? AND version = ?`,
		string(p.Status), p.LeaderID, p.Square, s.stamp(), string(data), p.PartyID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("updating party: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM parties WHERE id = ?`, p.PartyID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return party.ErrNotFound
		}
		return party.ErrVersionConflict
	}
	p.Version++
	return nil
}

// RecordPathImage upserts the party's drawing for a square and points the
// square at it.
func (s *DocStore) RecordPathImage(ctx context.Context, partyID, squareID, url string) error {
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO map_path_images (party_id, square_id, url, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(party_id, square_id) DO UPDATE SET url = excluded.url, created_at = excluded.created_at`,
			partyID, squareID, url, now,
		); err != nil {
			return fmt.Errorf("recording path image: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO squares (square_id, region, path_image_url, updated_at) VALUES (?, '', ?, ?)
			 ON CONFLICT(square_id) DO UPDATE SET path_image_url = excluded.path_image_url, updated_at = excluded.updated_at`,
			squareID, url, now,
		); err != nil {
			return fmt.Errorf("updating square path image: %w", err)
		}
		return nil
	})
}
