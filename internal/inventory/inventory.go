// Package inventory moves item quantities between a character's persistent
// item store and an expedition loadout.
package inventory

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

var (
	ErrNotFound     = errors.New("inventory: not found")
	ErrInsufficient = errors.New("inventory: insufficient quantity")
)

// CatalogItem is the canonical record of an item.
type CatalogItem struct {
	Name             string   `json:"itemName"`
	Category         []string `json:"category"`
	Type             []string `json:"type"`
	ModifierHearts   int      `json:"modifierHearts"`
	StaminaRecovered int      `json:"staminaRecovered"`
	Emoji            string   `json:"emoji,omitempty"`
	Image            string   `json:"image,omitempty"`
	Craftable        bool     `json:"crafting"`
}

// Catalog resolves item names to canonical records.
type Catalog interface {
	// Lookup matches name case-insensitively and returns ErrNotFound when
	// no item matches.
	Lookup(ctx context.Context, name string) (CatalogItem, error)
	Names(ctx context.Context) ([]string, error)
}

// Credit adds Quantity units to a stack, creating it with the given
// metadata when the character holds none.
type Credit struct {
	ItemName string
	Quantity int
	Category []string
	Type     []string
	Reason   string
}

// Debit removes Quantity units from a stack.
type Debit struct {
	ItemName string
	Quantity int
}

// Change is a set of stack mutations applied atomically.
type Change struct {
	Credits []Credit
	Debits  []Debit
}

// Store is a character's persistent item store. Stacks are matched by Key.
type Store interface {
	Quantity(ctx context.Context, characterID, itemName string) (int, error)
	// Apply runs credits then debits in one transaction. A debit that would
	// take a stack below zero fails the whole change with ErrInsufficient.
	Apply(ctx context.Context, characterID string, ch Change) error
}

// Key folds an item name for case-insensitive matching.
func Key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
