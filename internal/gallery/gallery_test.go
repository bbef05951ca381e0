package gallery_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/compositor"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/gallery"
	"github.com/playperu/expedition/internal/imagecache"
	"github.com/playperu/expedition/internal/mapsync"
	"github.com/playperu/expedition/internal/objectstore"
)

type squares map[string]mapsync.Square

func (s squares) Square(_ context.Context, id string) (mapsync.Square, error) {
	sq, ok := s[id]
	if !ok {
		return mapsync.Square{}, mapsync.ErrNotFound
	}
	return sq, nil
}

func (s squares) AdvanceQuadrant(context.Context, string, string, expedition.QuadrantID, expedition.QuadrantStatus, *time.Time) (bool, error) {
	return false, nil
}

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setup(t *testing.T) (*gallery.Gallery, *objectstore.FS, *imagecache.Memory) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := objectstore.NewFS(t.TempDir(), "/assets")
	require.NoError(t, err)
	_, err = store.Put(ctx, compositor.BaseKey("H8"), "image/png", pngOf(t, 240, 166, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)
	_, err = store.Put(ctx, compositor.FogKey("H8"), "image/png", pngOf(t, 240, 166, color.RGBA{A: 255}))
	require.NoError(t, err)

	a := atlas.Default()
	comp, err := compositor.New(compositor.NewObjectAssets(store), a, logger)
	require.NoError(t, err)
	maps := mapsync.New(squares{}, a, logger)
	cache := imagecache.NewMemory(time.Minute)
	return gallery.New(comp, maps, store, cache, logger), store, cache
}

func TestSquarePNGIsCached(t *testing.T) {
	ctx := context.Background()
	g, _, cache := setup(t)

	q := gallery.Query{Square: "h8", Quadrant: expedition.Q1}
	first, err := g.SquarePNG(ctx, q)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, compositor.Width, img.Bounds().Dx())

	second, err := g.SquarePNG(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, cache.Invalidate(ctx, "H8"))
	third, err := g.SquarePNG(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(third))

	_, err = g.SquarePNG(ctx, gallery.Query{Square: "A1"})
	assert.Equal(t, expedition.CodeBaseLayerMissing, expedition.CodeOf(err))
}

func TestPreview(t *testing.T) {
	g, _, _ := setup(t)
	m, err := g.Preview(context.Background(), gallery.Query{Square: "H8", Quadrant: expedition.Q2})
	require.NoError(t, err)

	var fogged []expedition.QuadrantID
	for _, l := range m.Layers {
		if l.Quadrant != "" {
			fogged = append(fogged, l.Quadrant)
		}
	}
	assert.Equal(t, []expedition.QuadrantID{expedition.Q1, expedition.Q3, expedition.Q4}, fogged)
	assert.Equal(t, "/assets/maps/base/H8.png", m.Layers[0].URL)
}

func TestSnapshotAndDrawPath(t *testing.T) {
	ctx := context.Background()
	g, store, _ := setup(t)

	p := expedition.NewParty("P1", "u1", expedition.Location{Region: "eldin", Square: "H8", Quadrant: expedition.Q1}, time.Now())
	p.Status = expedition.StatusStarted

	url, err := g.Snapshot(ctx, p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/assets/snapshots/P1/"), url)

	url, err = g.DrawPath(ctx, p, "H8", expedition.Q3, image.NewRGBA(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/assets/paths/P1/H8/"), url)

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	raw, err := store.Get(ctx, key)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, compositor.Height, img.Bounds().Dy())
}
