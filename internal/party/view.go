package party

import (
	"context"
	"errors"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/inventory"
	"github.com/playperu/expedition/internal/mapsync"
)

// ItemView is a gathered or lost item with its catalog image.
type ItemView struct {
	expedition.ItemRecord
	Image string `json:"image,omitempty"`
}

// View is the public projection of a party.
type View struct {
	*expedition.Party
	Outcome       expedition.Outcome `json:"outcome"`
	Settlement    string             `json:"settlement"`
	Map           mapsync.View       `json:"map"`
	GatheredItems []ItemView         `json:"gatheredItems"`
	LostItems     []ItemView         `json:"lostItems"`
}

// Get returns the public projection of a party: its document, the resolved
// outcome, its current square as the party sees it, and item images.
func (s *Service) Get(ctx context.Context, partyID string) (View, error) {
	p, err := s.load(ctx, partyID)
	if err != nil {
		return View{}, err
	}
	settlement, _ := s.Settlement(p.Region)
	v := View{
		Party:      p,
		Outcome:    p.ResolvedOutcome(),
		Settlement: settlement,
	}

	m, err := s.Map.Read(ctx, p.Square)
	if err != nil {
		return View{}, err
	}
	v.Map = mapsync.Project(m, p)

	images := map[string]string{}
	v.GatheredItems = s.itemViews(ctx, p.GatheredItems, images)
	v.LostItems = s.itemViews(ctx, p.LostItems, images)
	return v, nil
}

func (s *Service) itemViews(ctx context.Context, records []expedition.ItemRecord, images map[string]string) []ItemView {
	out := make([]ItemView, 0, len(records))
	for _, r := range records {
		k := inventory.Key(r.ItemName)
		img, ok := images[k]
		if !ok && s.Catalog != nil {
			item, err := s.Catalog.Lookup(ctx, r.ItemName)
			if err != nil && !errors.Is(err, inventory.ErrNotFound) {
				s.logger.Warn("catalog lookup failed", "item", r.ItemName, "error", err)
			}
			img = item.Image
			images[k] = img
		}
		out = append(out, ItemView{ItemRecord: r, Image: img})
	}
	return out
}
