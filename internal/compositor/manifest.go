package compositor

import (
	"context"

	"github.com/playperu/expedition/internal/expedition"
)

type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func boxOf(q expedition.QuadrantID) Box {
	r := QuadrantBounds(q)
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

type ManifestLayer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// Quadrant is set for layers cropped to one quadrant.
	Quadrant expedition.QuadrantID `json:"quadrant,omitempty"`
	Crop     *Box                  `json:"crop,omitempty"`
}

type ManifestQuadrant struct {
	ID      expedition.QuadrantID `json:"id"`
	Bounds  Box                   `json:"bounds"`
	Fogged  bool                  `json:"fogged"`
	Current bool                  `json:"current"`
}

// Manifest describes a composition for clients that stack the layers
// themselves.
type Manifest struct {
	Square    string             `json:"square"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Layers    []ManifestLayer    `json:"layers"`
	Quadrants []ManifestQuadrant `json:"quadrants"`
	Highlight *Box               `json:"highlight,omitempty"`
}

// Manifest resolves the layers of req that exist to public URLs.
func (c *Compositor) Manifest(ctx context.Context, req Request) (Manifest, error) {
	layers, err := c.fetch(ctx, req.Square, Plan(c.atlas, req))
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Square:    req.Square,
		Width:     Width,
		Height:    Height,
		Layers:    make([]ManifestLayer, 0, len(layers)),
		Quadrants: make([]ManifestQuadrant, 0, len(expedition.Quadrants)),
	}
	for _, l := range layers {
		ml := ManifestLayer{Name: l.step.Name, URL: c.assets.URL(l.key), Quadrant: l.step.Quadrant}
		if l.step.Quadrant != "" {
			b := boxOf(l.step.Quadrant)
			ml.Crop = &b
		}
		m.Layers = append(m.Layers, ml)
	}
	for i, q := range expedition.Quadrants {
		m.Quadrants = append(m.Quadrants, ManifestQuadrant{
			ID:      q,
			Bounds:  boxOf(q),
			Fogged:  !req.SuppressFog && req.Fog[i],
			Current: q == req.Current,
		})
	}
	if req.Highlight && req.Current != "" {
		b := boxOf(req.Current)
		m.Highlight = &b
	}
	return m, nil
}
