package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
)

const (
	ReasonRefund   = "Exploration party refund"
	ReasonSwap     = "Exploration loadout swap"
	ReasonRollback = "Exploration join rollback"
)

var fairyPattern = regexp.MustCompile(`(?i)fairy`)

// gearClasses are categories and types that can never be carried as
// exploration supplies.
var gearClasses = map[string]bool{
	"armor":  true,
	"weapon": true,
	"shield": true,
	"gear":   true,
}

// Coordinator validates loadouts against the catalog and moves item units in
// and out of character stores.
type Coordinator struct {
	catalog    Catalog
	store      Store
	bundles    map[string]atlas.Bundle
	exceptions map[string]bool
	logger     *slog.Logger
}

func NewCoordinator(catalog Catalog, store Store, rules atlas.ItemRules, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		catalog:    catalog,
		store:      store,
		bundles:    make(map[string]atlas.Bundle, len(rules.Bundles)),
		exceptions: make(map[string]bool, len(rules.RawMaterialExceptions)),
		logger:     logger,
	}
	for _, b := range rules.Bundles {
		c.bundles[Key(b.Name)] = b
	}
	for _, name := range rules.RawMaterialExceptions {
		c.exceptions[Key(name)] = true
	}
	return c
}

// Eligible reports whether item passes the exploration filter.
func (c *Coordinator) Eligible(item CatalogItem) bool {
	for _, class := range append(append([]string{}, item.Category...), item.Type...) {
		if gearClasses[strings.ToLower(class)] {
			return false
		}
	}
	exception := c.exceptions[Key(item.Name)]
	recovers := item.ModifierHearts > 0 || item.StaminaRecovered > 0
	if !recovers && !exception {
		return false
	}
	return exception || item.Craftable || fairyPattern.MatchString(item.Name)
}

// Reserve resolves names to canonical loadout items and confirms the
// character holds enough units for every slot. Nothing is debited.
func (c *Coordinator) Reserve(ctx context.Context, characterID string, names []string) ([]expedition.LoadoutItem, error) {
	return c.reserve(ctx, characterID, names, nil)
}

// ReserveReplacing is Reserve for a member swapping out current. Units of
// current are already debited, so they count as held.
func (c *Coordinator) ReserveReplacing(ctx context.Context, characterID string, names []string, current []expedition.LoadoutItem) ([]expedition.LoadoutItem, error) {
	held := make(map[string]int, len(current))
	for _, it := range current {
		held[Key(it.ItemName)]++
	}
	return c.reserve(ctx, characterID, names, held)
}

func (c *Coordinator) reserve(ctx context.Context, characterID string, names []string, held map[string]int) ([]expedition.LoadoutItem, error) {
	if len(names) > expedition.MaxLoadout {
		return nil, expedition.E(expedition.CodeTooManyItems,
			fmt.Sprintf("you can bring at most %d items", expedition.MaxLoadout))
	}

	items := make([]expedition.LoadoutItem, 0, len(names))
	need := make(map[string]int, len(names))
	for _, name := range names {
		item, err := c.resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		if !c.Eligible(item) {
			return nil, expedition.E(expedition.CodeItemNotExploration,
				fmt.Sprintf("%s can't be brought on an expedition", item.Name))
		}
		items = append(items, loadoutItem(item))
		need[Key(item.Name)]++
	}

	checked := make(map[string]bool, len(need))
	for _, it := range items {
		k := Key(it.ItemName)
		if checked[k] {
			continue
		}
		checked[k] = true

		have, err := c.store.Quantity(ctx, characterID, it.ItemName)
		if err != nil {
			return nil, fmt.Errorf("checking %s quantity: %w", it.ItemName, err)
		}
		have += held[k]
		if have < need[k] {
			return nil, expedition.E(expedition.CodeItemInsufficient,
				fmt.Sprintf("you need %d× %s but only have %d", need[k], it.ItemName, have))
		}
	}
	return items, nil
}

// Earmark debits the loadout units from the character's store.
func (c *Coordinator) Earmark(ctx context.Context, characterID string, items []expedition.LoadoutItem) error {
	err := c.store.Apply(ctx, characterID, Change{Debits: debits(items)})
	return insufficient(err)
}

// Swap returns old to the store and debits replacement in one change.
func (c *Coordinator) Swap(ctx context.Context, characterID string, old, replacement []expedition.LoadoutItem) error {
	err := c.store.Apply(ctx, characterID, Change{
		Credits: c.exactCredits(ctx, old, ReasonSwap),
		Debits:  debits(replacement),
	})
	return insufficient(err)
}

// Release returns loadout units exactly as they were earmarked. Bundles stay
// bundles.
func (c *Coordinator) Release(ctx context.Context, characterID string, items []expedition.LoadoutItem) error {
	if len(items) == 0 {
		return nil
	}
	return c.store.Apply(ctx, characterID, Change{Credits: c.exactCredits(ctx, items, ReasonRollback)})
}

// Refund credits a removed member's loadout back to the character. Bundles
// expand into their material, credits merge per resulting stack, and the
// whole refund lands in one store transaction. A slot whose catalog lookup
// fails is still credited under its loadout name.
func (c *Coordinator) Refund(ctx context.Context, characterID string, items []expedition.LoadoutItem) error {
	if len(items) == 0 {
		return nil
	}

	merged := make(map[string]*Credit)
	var order []string
	add := func(name string, qty int) {
		k := Key(name)
		if cr, ok := merged[k]; ok {
			cr.Quantity += qty
			return
		}
		merged[k] = &Credit{ItemName: name, Quantity: qty, Reason: ReasonRefund}
		order = append(order, k)
	}

	for _, it := range items {
		if b, ok := c.bundles[Key(it.ItemName)]; ok {
			add(b.Material, b.Quantity)
			continue
		}
		add(it.ItemName, 1)
	}

	credits := make([]Credit, 0, len(order))
	for _, k := range order {
		cr := *merged[k]
		c.describe(ctx, &cr)
		credits = append(credits, cr)
	}

	if err := c.store.Apply(ctx, characterID, Change{Credits: credits}); err != nil {
		return fmt.Errorf("refunding %d stacks to %s: %w", len(credits), characterID, err)
	}
	c.logger.Info("loadout refunded", "character_id", characterID, "stacks", len(credits))
	return nil
}

func (c *Coordinator) exactCredits(ctx context.Context, items []expedition.LoadoutItem, reason string) []Credit {
	credits := make([]Credit, 0, len(items))
	for _, it := range items {
		cr := Credit{ItemName: it.ItemName, Quantity: 1, Reason: reason}
		c.describe(ctx, &cr)
		credits = append(credits, cr)
	}
	return credits
}

// describe fills canonical name and classification from the catalog.
func (c *Coordinator) describe(ctx context.Context, cr *Credit) {
	item, err := c.catalog.Lookup(ctx, cr.ItemName)
	if err != nil {
		c.logger.Warn("refund item not in catalog, crediting as-is",
			"item", cr.ItemName, "error", err)
		return
	}
	cr.ItemName = item.Name
	cr.Category = item.Category
	cr.Type = item.Type
}

func (c *Coordinator) resolve(ctx context.Context, name string) (CatalogItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CatalogItem{}, expedition.E(expedition.CodeItemUnknown, "item name is empty")
	}
	item, err := c.catalog.Lookup(ctx, name)
	if errors.Is(err, ErrNotFound) {
		msg := fmt.Sprintf("%s is not a known item", name)
		if s := c.suggest(ctx, name); s != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", s)
		}
		return CatalogItem{}, expedition.E(expedition.CodeItemUnknown, msg)
	}
	if err != nil {
		return CatalogItem{}, fmt.Errorf("looking up %s: %w", name, err)
	}
	return item, nil
}

// suggest returns the closest catalog name within a third of the input
// length, or "".
func (c *Coordinator) suggest(ctx context.Context, name string) string {
	names, err := c.catalog.Names(ctx)
	if err != nil {
		return ""
	}
	want := Key(name)
	limit := max(2, len(want)/3)
	best, bestDist := "", limit+1
	for _, n := range names {
		if d := levenshtein.ComputeDistance(want, Key(n)); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

func loadoutItem(item CatalogItem) expedition.LoadoutItem {
	return expedition.LoadoutItem{
		ItemName:         item.Name,
		ModifierHearts:   item.ModifierHearts,
		StaminaRecovered: item.StaminaRecovered,
		Emoji:            item.Emoji,
	}
}

func debits(items []expedition.LoadoutItem) []Debit {
	idx := make(map[string]int)
	var out []Debit
	for _, it := range items {
		k := Key(it.ItemName)
		if i, ok := idx[k]; ok {
			out[i].Quantity++
			continue
		}
		idx[k] = len(out)
		out = append(out, Debit{ItemName: it.ItemName, Quantity: 1})
	}
	return out
}

func insufficient(err error) error {
	if errors.Is(err, ErrInsufficient) {
		return expedition.Wrap(expedition.CodeItemInsufficient,
			"you no longer have enough of those items", err)
	}
	return err
}
