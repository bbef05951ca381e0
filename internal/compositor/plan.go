package compositor

import (
	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
)

// Step is one layer of a composition. A missing optional layer is dropped;
// a missing required layer fails the render.
type Step struct {
	Name     string
	Key      string
	Required bool
	// Quadrant limits the layer to one quadrant's crop. Empty means the
	// whole canvas.
	Quadrant expedition.QuadrantID
	// Fallback is tried when Key is missing.
	Fallback string
}

// Plan lists the layers for req in drawing order.
func Plan(a *atlas.Atlas, req Request) []Step {
	sq := a.Square(req.Square)

	base := Step{Name: "base", Key: BaseKey(req.Square), Required: true}
	if req.PathImageKey != "" {
		base.Key, base.Fallback = req.PathImageKey, BaseKey(req.Square)
	}
	steps := []Step{base}

	if sq.Hazard {
		steps = append(steps, Step{Name: "hazard", Key: HazardKey(req.Square)})
	}
	steps = append(steps, Step{Name: "border", Key: BorderKey(req.Square)})
	for _, layer := range sq.Paths {
		steps = append(steps, Step{Name: "path:" + layer, Key: PathKey(layer, req.Square)})
	}
	for _, s := range sq.Settlements {
		steps = append(steps, Step{Name: "settlement:" + s, Key: SettlementKey(s, req.Square)})
	}
	if !req.SuppressFog {
		for i, q := range expedition.Quadrants {
			if req.Fog[i] {
				steps = append(steps, Step{Name: "fog:" + string(q), Key: FogKey(req.Square), Quadrant: q})
			}
		}
	}
	return steps
}
