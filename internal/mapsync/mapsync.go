// Package mapsync keeps the durable exploration state of map squares in step
// with what expedition runs have revealed. A secured quadrant is never
// overwritten by a party.
package mapsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
)

var ErrNotFound = errors.New("mapsync: square not found")

// Quadrant is the durable state of one quarter of a square.
type Quadrant struct {
	ID         expedition.QuadrantID     `json:"quadrantId"`
	Status     expedition.QuadrantStatus `json:"status"`
	ExploredAt *time.Time                `json:"exploredAt,omitempty"`
}

// Square is the durable record of a map cell. Quadrants may be partial;
// missing entries read as unexplored.
type Square struct {
	SquareID     string                             `json:"squareId"`
	Region       string                             `json:"region"`
	Status       string                             `json:"status"`
	PathImageURL string                             `json:"pathImageUrl,omitempty"`
	Quadrants    map[expedition.QuadrantID]Quadrant `json:"quadrants"`
}

// Store persists squares.
type Store interface {
	// Square returns ErrNotFound when no record exists.
	Square(ctx context.Context, squareID string) (Square, error)
	// AdvanceQuadrant sets status on a quadrant unless it is already
	// secured, creating the square record if needed. A non-nil exploredAt is
	// stamped in the same write. It reports whether the row changed.
	AdvanceQuadrant(ctx context.Context, squareID, region string, q expedition.QuadrantID,
		status expedition.QuadrantStatus, exploredAt *time.Time) (bool, error)
}

// View is the read side of a square: four statuses in label order plus the
// latest drawn path image.
type View struct {
	SquareID     string     `json:"squareId"`
	Region       string     `json:"region"`
	Quadrants    []Quadrant `json:"quadrants"`
	PathImageURL string     `json:"pathImageUrl,omitempty"`
}

// Status returns the status of q in the view.
func (v View) Status(q expedition.QuadrantID) expedition.QuadrantStatus {
	for _, quad := range v.Quadrants {
		if quad.ID == q {
			return quad.Status
		}
	}
	return expedition.QuadrantUnexplored
}

func (v View) set(q expedition.QuadrantID, s expedition.QuadrantStatus) {
	for i := range v.Quadrants {
		if v.Quadrants[i].ID == q {
			v.Quadrants[i].Status = s
		}
	}
}

type Synchronizer struct {
	store  Store
	atlas  *atlas.Atlas
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, a *atlas.Atlas, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: store, atlas: a, logger: logger, now: time.Now}
}

// Read returns the durable state of squareID. A square with no record reads
// as four unexplored quadrants in the region the atlas assigns it.
func (s *Synchronizer) Read(ctx context.Context, squareID string) (View, error) {
	id, err := expedition.ParseSquare(squareID)
	if err != nil {
		return View{}, err
	}

	sq, err := s.store.Square(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sq = Square{SquareID: id, Region: s.atlas.Square(id).Region}
	} else if err != nil {
		return View{}, fmt.Errorf("reading square %s: %w", id, err)
	}
	if sq.Region == "" {
		sq.Region = s.atlas.Square(id).Region
	}

	v := View{
		SquareID:     id,
		Region:       sq.Region,
		PathImageURL: sq.PathImageURL,
		Quadrants:    make([]Quadrant, 0, len(expedition.Quadrants)),
	}
	for _, q := range expedition.Quadrants {
		quad, ok := sq.Quadrants[q]
		if !ok || quad.Status == "" {
			quad = Quadrant{Status: expedition.QuadrantUnexplored, ExploredAt: quad.ExploredAt}
		}
		quad.ID = q
		v.Quadrants = append(v.Quadrants, quad)
	}
	return v, nil
}

// Project overlays what p revealed this run on a durable view. Secured
// quadrants are left as they are.
func Project(v View, p *expedition.Party) View {
	out := v
	out.Quadrants = append([]Quadrant(nil), v.Quadrants...)
	if p == nil {
		return out
	}
	for _, quad := range out.Quadrants {
		if explored(p, v.SquareID, quad.ID) && quad.Status.Rank() < expedition.QuadrantExplored.Rank() {
			out.set(quad.ID, expedition.QuadrantExplored)
		}
	}
	return out
}

func explored(p *expedition.Party, square string, q expedition.QuadrantID) bool {
	if p.ExploredThisRun(expedition.QuadrantRef{Square: square, Quadrant: q}) {
		return true
	}
	return p.Square == square && p.Quadrant == q && p.QuadrantState == expedition.QuadrantExplored
}

// Reveal writes the explored quadrants of squareID that p has revealed into
// the durable record and returns the projected view. active is the quadrant
// being shown to the caller. Once p has left the started state nothing is
// written and the durable view is returned as is.
func (s *Synchronizer) Reveal(ctx context.Context, p *expedition.Party, squareID string, active expedition.QuadrantID) (View, error) {
	v, err := s.Read(ctx, squareID)
	if err != nil {
		return View{}, err
	}
	if p.Status != expedition.StatusStarted {
		s.logger.Debug("quadrant write suppressed",
			"party_id", p.PartyID, "status", p.Status, "square", v.SquareID)
		return v, nil
	}

	proj := Project(v, p)
	now := s.now().UTC()
	for _, quad := range proj.Quadrants {
		if quad.Status != expedition.QuadrantExplored {
			continue
		}
		var stamp *time.Time
		if p.Square == v.SquareID && p.Quadrant == quad.ID && p.QuadrantState == expedition.QuadrantExplored {
			stamp = &now
		}
		changed, err := s.store.AdvanceQuadrant(ctx, v.SquareID, v.Region, quad.ID, expedition.QuadrantExplored, stamp)
		if err != nil {
			return View{}, fmt.Errorf("advancing %s %s: %w", v.SquareID, quad.ID, err)
		}
		if changed {
			s.logger.Info("quadrant explored",
				"party_id", p.PartyID, "square", v.SquareID, "quadrant", quad.ID, "active", quad.ID == active)
		}
	}

	after, err := s.Read(ctx, v.SquareID)
	if err != nil {
		return View{}, err
	}
	return Project(after, p), nil
}

// Fogged reports whether a quadrant is drawn under fog for a viewer whose
// current quadrant is active. The active quadrant is never fogged.
func Fogged(status expedition.QuadrantStatus, q, active expedition.QuadrantID) bool {
	return status.Hidden() && q != active
}

// FogMask returns, per quadrant in label order, whether it is fogged.
func (v View) FogMask(active expedition.QuadrantID) [4]bool {
	var mask [4]bool
	for i, q := range expedition.Quadrants {
		mask[i] = Fogged(v.Status(q), q, active)
	}
	return mask
}
