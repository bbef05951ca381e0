// Package gallery renders squares for viewers and stores the images parties
// produce: start snapshots and drawn path overlays.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"github.com/playperu/expedition/internal/compositor"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/imagecache"
	"github.com/playperu/expedition/internal/mapsync"
	"github.com/playperu/expedition/internal/objectstore"
)

// Query selects a square view.
type Query struct {
	Square    string
	Quadrant  expedition.QuadrantID
	NoMask    bool
	Highlight bool
}

type Gallery struct {
	comp   *compositor.Compositor
	maps   *mapsync.Synchronizer
	store  objectstore.Store
	cache  imagecache.Cache
	logger *slog.Logger
}

func New(comp *compositor.Compositor, maps *mapsync.Synchronizer, store objectstore.Store, cache imagecache.Cache, logger *slog.Logger) *Gallery {
	return &Gallery{comp: comp, maps: maps, store: store, cache: cache, logger: logger}
}

// request builds the compositor input for q from the square's durable state,
// projected through p when a party is viewing.
func (g *Gallery) request(ctx context.Context, q Query, p *expedition.Party) (compositor.Request, mapsync.View, error) {
	v, err := g.maps.Read(ctx, q.Square)
	if err != nil {
		return compositor.Request{}, mapsync.View{}, err
	}
	if p != nil {
		v = mapsync.Project(v, p)
	}
	req := compositor.Request{
		Square:      v.SquareID,
		Current:     q.Quadrant,
		SuppressFog: q.NoMask,
		Highlight:   q.Highlight,
		Fog:         v.FogMask(q.Quadrant),
	}
	if v.PathImageURL != "" {
		if key, ok := g.store.KeyFromURL(v.PathImageURL); ok {
			req.PathImageKey = key
		}
	}
	return req, v, nil
}

func cacheKey(req compositor.Request) string {
	parts := []string{string(req.Current), strconv.FormatBool(req.SuppressFog),
		strconv.FormatBool(req.Highlight), req.PathImageKey}
	for _, f := range req.Fog {
		parts = append(parts, strconv.FormatBool(f))
	}
	return imagecache.Key(req.Square, parts...)
}

// SquarePNG renders a square for a viewer.
func (g *Gallery) SquarePNG(ctx context.Context, q Query) ([]byte, error) {
	req, _, err := g.request(ctx, q, nil)
	if err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if b, err := g.cache.Get(ctx, key); err == nil {
		return b, nil
	} else if !errors.Is(err, imagecache.ErrMiss) {
		g.logger.Warn("image cache read failed", "square", req.Square, "error", err)
	}

	b, err := g.comp.RenderPNG(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, b); err != nil {
		g.logger.Warn("image cache write failed", "square", req.Square, "error", err)
	}
	return b, nil
}

// Preview returns the layer manifest for a square view.
func (g *Gallery) Preview(ctx context.Context, q Query) (compositor.Manifest, error) {
	req, _, err := g.request(ctx, q, nil)
	if err != nil {
		return compositor.Manifest{}, err
	}
	return g.comp.Manifest(ctx, req)
}

// Snapshot renders the party's current square as the party sees it and
// stores it under the party.
func (g *Gallery) Snapshot(ctx context.Context, p *expedition.Party) (string, error) {
	req, _, err := g.request(ctx, Query{Square: p.Square, Quadrant: p.Quadrant, Highlight: true}, p)
	if err != nil {
		return "", err
	}
	b, err := g.comp.RenderPNG(ctx, req)
	if err != nil {
		return "", err
	}
	url, err := g.store.Put(ctx, objectstore.ContentKey("snapshots/"+p.PartyID, b, "png"), "image/png", b)
	if err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	return url, nil
}

// DrawPath composites drawing onto square and stores the result as the
// square's next path image.
func (g *Gallery) DrawPath(ctx context.Context, p *expedition.Party, square string, q expedition.QuadrantID, drawing image.Image) (string, error) {
	req, _, err := g.request(ctx, Query{Square: square}, p)
	if err != nil {
		return "", err
	}
	b, err := g.comp.Overlay(ctx, req, drawing, q)
	if err != nil {
		return "", err
	}
	url, err := g.store.Put(ctx, objectstore.ContentKey("paths/"+p.PartyID+"/"+req.Square, b, "png"), "image/png", b)
	if err != nil {
		return "", fmt.Errorf("storing path image: %w", err)
	}
	if err := g.cache.Invalidate(ctx, req.Square); err != nil {
		g.logger.Warn("image cache invalidation failed", "square", req.Square, "error", err)
	}
	return url, nil
}
