package inventory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/inventory"
)

type fakeCatalog map[string]inventory.CatalogItem

func (f fakeCatalog) Lookup(_ context.Context, name string) (inventory.CatalogItem, error) {
	item, ok := f[inventory.Key(name)]
	if !ok {
		return inventory.CatalogItem{}, inventory.ErrNotFound
	}
	return item, nil
}

func (f fakeCatalog) Names(context.Context) ([]string, error) {
	var names []string
	for _, it := range f {
		names = append(names, it.Name)
	}
	sort.Strings(names)
	return names, nil
}

func newCatalog(items ...inventory.CatalogItem) fakeCatalog {
	c := fakeCatalog{}
	for _, it := range items {
		c[inventory.Key(it.Name)] = it
	}
	return c
}

type memStore struct {
	mu      sync.Mutex
	stacks  map[string]map[string]int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{stacks: map[string]map[string]int{}}
}

func (m *memStore) set(char, item string, qty int) {
	if m.stacks[char] == nil {
		m.stacks[char] = map[string]int{}
	}
	m.stacks[char][inventory.Key(item)] = qty
}

func (m *memStore) Quantity(_ context.Context, char, item string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stacks[char][inventory.Key(item)], nil
}

func (m *memStore) Apply(_ context.Context, char string, ch inventory.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("store down")
	}
	next := map[string]int{}
	for k, v := range m.stacks[char] {
		next[k] = v
	}
	for _, c := range ch.Credits {
		next[inventory.Key(c.ItemName)] += c.Quantity
	}
	for _, d := range ch.Debits {
		k := inventory.Key(d.ItemName)
		if next[k] < d.Quantity {
			return inventory.ErrInsufficient
		}
		next[k] -= d.Quantity
	}
	m.stacks[char] = next
	return nil
}

var (
	apple     = inventory.CatalogItem{Name: "Apple", Category: []string{"Recipe"}, ModifierHearts: 1, Craftable: true, Emoji: "🍎"}
	fairy     = inventory.CatalogItem{Name: "Fairy", Category: []string{"Creature"}, ModifierHearts: 5}
	woodBdl   = inventory.CatalogItem{Name: "Wood Bundle", Category: []string{"Material"}}
	wood      = inventory.CatalogItem{Name: "Wood", Category: []string{"Material"}}
	sword     = inventory.CatalogItem{Name: "Soldier's Broadsword", Category: []string{"Weapon"}, ModifierHearts: 1, Craftable: true}
	tunic     = inventory.CatalogItem{Name: "Hylian Tunic", Type: []string{"Armor"}, ModifierHearts: 2, Craftable: true}
	rawHerb   = inventory.CatalogItem{Name: "Hearty Radish", Category: []string{"Material"}, ModifierHearts: 3}
	flint     = inventory.CatalogItem{Name: "Flint", Category: []string{"Material"}, Craftable: true}
	elixirFly = inventory.CatalogItem{Name: "Energetic Rhino Beetle", StaminaRecovered: 2, Craftable: true}
)

func newCoordinator(t *testing.T) (*inventory.Coordinator, *memStore) {
	t.Helper()
	store := newMemStore()
	cat := newCatalog(apple, fairy, woodBdl, wood, sword, tunic, rawHerb, flint, elixirFly)
	rules := atlas.Default().Items
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return inventory.NewCoordinator(cat, store, rules, logger), store
}

func TestEligible(t *testing.T) {
	c, _ := newCoordinator(t)
	tests := []struct {
		item inventory.CatalogItem
		want bool
	}{
		{apple, true},
		{fairy, true},
		{woodBdl, true},
		{elixirFly, true},
		{wood, false},
		{sword, false},
		{tunic, false},
		{rawHerb, false},
		{flint, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Eligible(tt.item), tt.item.Name)
	}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 2)
	store.set("hero", "Fairy", 1)

	items, err := c.Reserve(ctx, "hero", []string{"apple", "Fairy", "APPLE"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Apple", items[0].ItemName)
	assert.Equal(t, 1, items[0].ModifierHearts)
	assert.Equal(t, "🍎", items[0].Emoji)
	assert.Equal(t, "Fairy", items[1].ItemName)

	assert.Equal(t, 2, store.stacks["hero"]["apple"], "reserve must not debit")
}

func TestReserveRejections(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 1)
	store.set("hero", "Soldier's Broadsword", 1)
	store.set("hero", "Hylian Tunic", 1)

	tests := []struct {
		name  string
		items []string
		code  expedition.Code
	}{
		{"four items", []string{"Apple", "Apple", "Apple", "Apple"}, expedition.CodeTooManyItems},
		{"weapon", []string{"Soldier's Broadsword"}, expedition.CodeItemNotExploration},
		{"armor", []string{"Hylian Tunic"}, expedition.CodeItemNotExploration},
		{"unknown", []string{"Dragon Scale"}, expedition.CodeItemUnknown},
		{"duplicate needs two", []string{"Apple", "Apple"}, expedition.CodeItemInsufficient},
		{"not held", []string{"Fairy"}, expedition.CodeItemInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Reserve(ctx, "hero", tt.items)
			assert.Equal(t, tt.code, expedition.CodeOf(err), "err = %v", err)
		})
	}
}

func TestReserveSuggestsCloseName(t *testing.T) {
	c, _ := newCoordinator(t)
	_, err := c.Reserve(context.Background(), "hero", []string{"Aple"})
	var de *expedition.Error
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Message, "did you mean Apple?")
}

func TestEarmarkThenRefundRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 5)

	items, err := c.Reserve(ctx, "hero", []string{"Apple"})
	require.NoError(t, err)
	require.NoError(t, c.Earmark(ctx, "hero", items))
	assert.Equal(t, 4, store.stacks["hero"]["apple"])

	require.NoError(t, c.Refund(ctx, "hero", items))
	assert.Equal(t, 5, store.stacks["hero"]["apple"])
}

func TestRefundExpandsBundles(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Wood Bundle", 2)

	items, err := c.Reserve(ctx, "hero", []string{"Wood Bundle", "Wood Bundle"})
	require.NoError(t, err)
	require.NoError(t, c.Earmark(ctx, "hero", items))
	require.NoError(t, c.Refund(ctx, "hero", items))

	assert.Equal(t, 0, store.stacks["hero"]["wood bundle"])
	assert.Equal(t, 10, store.stacks["hero"]["wood"])
}

func TestReleaseKeepsBundles(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Wood Bundle", 1)

	items, err := c.Reserve(ctx, "hero", []string{"Wood Bundle"})
	require.NoError(t, err)
	require.NoError(t, c.Earmark(ctx, "hero", items))
	require.NoError(t, c.Release(ctx, "hero", items))

	assert.Equal(t, 1, store.stacks["hero"]["wood bundle"])
	assert.Equal(t, 0, store.stacks["hero"]["wood"])
}

func TestSwap(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 1)
	store.set("hero", "Fairy", 1)

	old, err := c.Reserve(ctx, "hero", []string{"Apple"})
	require.NoError(t, err)
	require.NoError(t, c.Earmark(ctx, "hero", old))

	next, err := c.Reserve(ctx, "hero", []string{"Fairy"})
	require.NoError(t, err)
	require.NoError(t, c.Swap(ctx, "hero", old, next))

	assert.Equal(t, 1, store.stacks["hero"]["apple"])
	assert.Equal(t, 0, store.stacks["hero"]["fairy"])
}

func TestReserveReplacingCountsCurrentLoadout(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 1)

	old, err := c.Reserve(ctx, "hero", []string{"Apple"})
	require.NoError(t, err)
	require.NoError(t, c.Earmark(ctx, "hero", old))

	_, err = c.Reserve(ctx, "hero", []string{"Apple"})
	assert.Equal(t, expedition.CodeItemInsufficient, expedition.CodeOf(err))

	next, err := c.ReserveReplacing(ctx, "hero", []string{"Apple"}, old)
	require.NoError(t, err)
	require.NoError(t, c.Swap(ctx, "hero", old, next))
	assert.Equal(t, 0, store.stacks["hero"]["apple"])
}

func TestEarmarkInsufficientIsDomainError(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)
	store.set("hero", "Apple", 1)

	items, err := c.Reserve(ctx, "hero", []string{"Apple"})
	require.NoError(t, err)
	store.set("hero", "Apple", 0)

	err = c.Earmark(ctx, "hero", items)
	assert.Equal(t, expedition.CodeItemInsufficient, expedition.CodeOf(err))
	assert.ErrorIs(t, err, inventory.ErrInsufficient)
}

func TestRefundUnknownItemStillCredited(t *testing.T) {
	ctx := context.Background()
	c, store := newCoordinator(t)

	err := c.Refund(ctx, "hero", []expedition.LoadoutItem{{ItemName: "Retired Mushroom"}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.stacks["hero"]["retired mushroom"])
}

func TestRefundStoreFailureSurfaces(t *testing.T) {
	c, store := newCoordinator(t)
	store.failing = true
	err := c.Refund(context.Background(), "hero", []expedition.LoadoutItem{{ItemName: "Apple"}})
	assert.Error(t, err)
}
