package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/party"
)

// Sessions resolves bearer tokens to user ids.
type Sessions interface {
	UserFromToken(ctx context.Context, token string) (string, error)
}

// --- Sessions ---

func (s *DocStore) UserFromToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token = ?`, token,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// CreateSession issues a new token for userID. An empty token asks for a
// random one.
func (s *DocStore) CreateSession(ctx context.Context, userID, token string) (string, error) {
	if token == "" {
		token = newToken()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id`,
		token, userID, s.stamp(),
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

func newToken() string {
	b := make([]byte, 24)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// --- Characters ---

func (s *DocStore) Character(ctx context.Context, id string) (party.Character, error) {
	var (
		c               party.Character
		hearts, stamina sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, current_hearts, max_hearts, current_stamina, max_stamina, current_village, icon
		 FROM characters WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Name, &hearts, &c.MaxHearts, &stamina, &c.MaxStamina, &c.CurrentVillage, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return party.Character{}, party.ErrNotFound
	}
	if err != nil {
		return party.Character{}, err
	}
	if hearts.Valid {
		v := int(hearts.Int64)
		c.CurrentHearts = &v
	}
	if stamina.Valid {
		v := int(stamina.Int64)
		c.CurrentStamina = &v
	}
	return c, nil
}

func (s *DocStore) PutCharacter(ctx context.Context, c party.Character) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (id, user_id, name, current_hearts, max_hearts, current_stamina, max_stamina, current_village, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id, name = excluded.name,
		   current_hearts = excluded.current_hearts, max_hearts = excluded.max_hearts,
		   current_stamina = excluded.current_stamina, max_stamina = excluded.max_stamina,
		   current_village = excluded.current_village, icon = excluded.icon`,
		c.ID, c.UserID, c.Name, nullInt(c.CurrentHearts), c.MaxHearts, nullInt(c.CurrentStamina), c.MaxStamina,
		c.CurrentVillage, c.Icon,
	)
	return err
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// --- Item catalog ---

func (s *DocStore) Lookup(ctx context.Context, name string) (inventory.CatalogItem, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM catalog_items WHERE item_key = ?`, inventory.Key(name),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.CatalogItem{}, inventory.ErrNotFound
	}
	if err != nil {
		return inventory.CatalogItem{}, err
	}
	var item inventory.CatalogItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return inventory.CatalogItem{}, fmt.Errorf("decoding catalog item %q: %w", name, err)
	}
	return item, nil
}

func (s *DocStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM catalog_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *DocStore) PutCatalogItem(ctx context.Context, item inventory.CatalogItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catalog_items (item_key, name, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(item_key) DO UPDATE SET name = excluded.name, data = excluded.data`,
		inventory.Key(item.Name), item.Name, string(data),
	)
	return err
}
