// Package compositor flattens the layered art of a map square into one
// image: base map, hazard and border overlays, paths, settlements, fog per
// quadrant, the quadrant grid and an optional highlight.
package compositor

import (
	"fmt"
	"image"

	"github.com/playperu/expedition/internal/expedition"
)

// Canvas size shared by every square.
const (
	Width  = 2400
	Height = 1666
)

// Request selects what to draw for one square.
type Request struct {
	Square string
	// Current is the viewer's quadrant. Empty when the viewer is elsewhere.
	Current     expedition.QuadrantID
	SuppressFog bool
	Highlight   bool
	// PathImageKey is the asset key of a previously drawn path image that
	// replaces the default base art.
	PathImageKey string
	// Fog marks, in label order, the quadrants drawn under fog.
	Fog [4]bool
}

// QuadrantBounds returns the canvas rectangle covered by q. Q2 and Q4 sit
// on the right half, Q3 and Q4 on the bottom half.
func QuadrantBounds(q expedition.QuadrantID) image.Rectangle {
	return quadrantIn(image.Rect(0, 0, Width, Height), q)
}

func quadrantIn(r image.Rectangle, q expedition.QuadrantID) image.Rectangle {
	w, h := r.Dx()/2, r.Dy()/2
	x, y := r.Min.X, r.Min.Y
	if q == expedition.Q2 || q == expedition.Q4 {
		x += w
	}
	if q == expedition.Q3 || q == expedition.Q4 {
		y += h
	}
	// The right and bottom halves absorb odd pixels.
	x1, y1 := x+w, y+h
	if x > r.Min.X {
		x1 = r.Max.X
	}
	if y > r.Min.Y {
		y1 = r.Max.Y
	}
	return image.Rect(x, y, x1, y1)
}

// Asset keys, relative to the object store.

func BaseKey(square string) string   { return fmt.Sprintf("maps/base/%s.png", square) }
func HazardKey(square string) string { return fmt.Sprintf("maps/hazards/%s.png", square) }
func BorderKey(square string) string { return fmt.Sprintf("maps/borders/%s.png", square) }
func FogKey(square string) string    { return fmt.Sprintf("maps/fog/%s.png", square) }

func PathKey(layer, square string) string {
	return fmt.Sprintf("maps/paths/%s/%s.png", layer, square)
}

func SettlementKey(settlement, square string) string {
	return fmt.Sprintf("maps/villages/%s/%s.png", settlement, square)
}
