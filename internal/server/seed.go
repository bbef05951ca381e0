package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/party"
)

// DemoTokens maps the seeded bearer tokens to their users.
var DemoTokens = map[string]string{
	"demo-link":  "u-link",
	"demo-zelda": "u-zelda",
}

var demoCatalog = []inventory.CatalogItem{
	{Name: "Apple", Category: []string{"Recipe"}, ModifierHearts: 1, Craftable: true, Emoji: "🍎"},
	{Name: "Fairy", Category: []string{"Creature"}, ModifierHearts: 5, Emoji: "🧚"},
	{Name: "Wood", Category: []string{"Material"}},
	{Name: "Wood Bundle", Category: []string{"Material"}},
	{Name: "Energetic Rhino Beetle", Category: []string{"Creature"}, StaminaRecovered: 2, Craftable: true},
	{Name: "Soldier's Broadsword", Category: []string{"Weapon"}, ModifierHearts: 1, Craftable: true},
}

func intPtr(v int) *int { return &v }

var demoCharacters = []party.Character{
	{ID: "c-link", UserID: "u-link", Name: "Link", CurrentHearts: intPtr(5), MaxHearts: 8, MaxStamina: 6, CurrentVillage: "Rudania"},
	{ID: "c-zelda", UserID: "u-zelda", Name: "Zelda", MaxHearts: 6, MaxStamina: 7, CurrentVillage: "Rudania"},
}

var demoStacks = []struct {
	character string
	item      string
	qty       int
}{
	{"c-link", "Apple", 10},
	{"c-link", "Wood Bundle", 2},
	{"c-zelda", "Fairy", 2},
	{"c-zelda", "Energetic Rhino Beetle", 3},
}

// SeedDemo loads a small catalog, two characters with inventories and
// sessions, and one secured quadrant. Idempotent: does nothing if the
// catalog already has items.
func SeedDemo(ctx context.Context, logger *slog.Logger, store *DocStore) error {
	existing, err := store.Names(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, item := range demoCatalog {
		if err := store.PutCatalogItem(ctx, item); err != nil {
			return fmt.Errorf("seeding item %s: %w", item.Name, err)
		}
	}
	for _, c := range demoCharacters {
		if err := store.PutCharacter(ctx, c); err != nil {
			return fmt.Errorf("seeding character %s: %w", c.Name, err)
		}
	}
	for _, st := range demoStacks {
		if err := store.SetQuantity(ctx, st.character, st.item, st.qty); err != nil {
			return fmt.Errorf("seeding %s for %s: %w", st.item, st.character, err)
		}
	}
	for token, user := range DemoTokens {
		if _, err := store.CreateSession(ctx, user, token); err != nil {
			return err
		}
	}
	if err := store.SetQuadrant(ctx, "H8", "eldin", expedition.Q3, expedition.QuadrantSecured); err != nil {
		return fmt.Errorf("seeding map: %w", err)
	}

	logger.Info("demo data seeded", "characters", len(demoCharacters), "items", len(demoCatalog))
	return nil
}
