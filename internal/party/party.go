// Package party runs expedition parties: it loads and saves party documents,
// applies the state transitions from package expedition, and keeps
// inventory, map state, chat threads and live subscribers in step with them.
package party

import (
	"context"
	"errors"
	"image"

	"github.com/playperu/expedition/internal/chat"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/mapsync"
)

var (
	ErrNotFound = errors.New("party: not found")
	// ErrVersionConflict is returned by Repository.Update when the stored
	// document moved on since it was read.
	ErrVersionConflict = errors.New("party: version conflict")
)

type Repository interface {
	Create(ctx context.Context, p *expedition.Party) error
	// Get returns ErrNotFound when no party has id.
	Get(ctx context.Context, id string) (*expedition.Party, error)
	// Update stores p if the stored version still equals p.Version and
	// bumps p.Version. Otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, p *expedition.Party) error
	// RecordPathImage upserts the path image drawn by a party on a square
	// and makes it the square's current path image.
	RecordPathImage(ctx context.Context, partyID, squareID, url string) error
}

// Character is the external character record a member is created from.
type Character struct {
	ID             string
	UserID         string
	Name           string
	CurrentHearts  *int
	MaxHearts      int
	CurrentStamina *int
	MaxStamina     int
	CurrentVillage string
	Icon           string
}

// Hearts returns the current hearts, or the maximum when none are recorded.
func (c Character) Hearts() int {
	if c.CurrentHearts == nil {
		return c.MaxHearts
	}
	return *c.CurrentHearts
}

// Stamina returns the current stamina, or the maximum when none is recorded.
func (c Character) Stamina() int {
	if c.CurrentStamina == nil {
		return c.MaxStamina
	}
	return *c.CurrentStamina
}

type Characters interface {
	// Character returns ErrNotFound when id is unknown.
	Character(ctx context.Context, id string) (Character, error)
}

// Inventory moves loadout units in and out of character stores.
type Inventory interface {
	Reserve(ctx context.Context, characterID string, names []string) ([]expedition.LoadoutItem, error)
	ReserveReplacing(ctx context.Context, characterID string, names []string, current []expedition.LoadoutItem) ([]expedition.LoadoutItem, error)
	Earmark(ctx context.Context, characterID string, items []expedition.LoadoutItem) error
	Swap(ctx context.Context, characterID string, old, replacement []expedition.LoadoutItem) error
	Release(ctx context.Context, characterID string, items []expedition.LoadoutItem) error
	Refund(ctx context.Context, characterID string, items []expedition.LoadoutItem) error
}

type Map interface {
	Read(ctx context.Context, squareID string) (mapsync.View, error)
	Reveal(ctx context.Context, p *expedition.Party, squareID string, active expedition.QuadrantID) (mapsync.View, error)
}

// Images renders and stores square images for a party.
type Images interface {
	// Snapshot renders the party's current square and returns its URL.
	Snapshot(ctx context.Context, p *expedition.Party) (string, error)
	// DrawPath composites drawing onto square, quadrant-scoped when q is
	// set, and returns the URL of the new path image.
	DrawPath(ctx context.Context, p *expedition.Party, square string, q expedition.QuadrantID, drawing image.Image) (string, error)
}

// Event is published to live subscribers of a party after every change.
type Event struct {
	Type          string                 `json:"type"`
	PartyID       string                 `json:"partyId"`
	Status        expedition.PartyStatus `json:"status"`
	UserID        string                 `json:"userId,omitempty"`
	CharacterName string                 `json:"characterName,omitempty"`
	Square        string                 `json:"square,omitempty"`
	Quadrant      expedition.QuadrantID  `json:"quadrant,omitempty"`
}

type Events interface {
	Publish(partyID string, ev Event)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Repo       Repository
	Characters Characters
	Inventory  Inventory
	Catalog    inventory.Catalog
	Map        Map
	Threads    chat.Client
	Images     Images
	Events     Events
	Settlement func(region string) (string, bool)
	RegionOf   func(square string) string
}
