package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
)

const (
	gridWidth      = 8
	highlightWidth = 14
	labelSize      = 96
	labelPadding   = 36
)

var (
	gridColor      = color.NRGBA{R: 255, G: 255, B: 255, A: 140}
	labelColor     = color.NRGBA{R: 255, G: 255, B: 255, A: 235}
	currentColor   = color.NRGBA{R: 255, G: 204, B: 0, A: 255}
	shadowColor    = color.NRGBA{A: 160}
	highlightColor = color.NRGBA{R: 255, G: 204, B: 0, A: 230}
)

type Compositor struct {
	assets Assets
	atlas  *atlas.Atlas
	logger *slog.Logger

	// font.Face is not safe for concurrent use.
	faceMu sync.Mutex
	face   font.Face
}

func New(assets Assets, a *atlas.Atlas, logger *slog.Logger) (*Compositor, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing label font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: labelSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("building label face: %w", err)
	}
	return &Compositor{assets: assets, atlas: a, logger: logger, face: face}, nil
}

type layer struct {
	step Step
	key  string
	img  image.Image
}

// fetch loads every step concurrently and returns the layers that exist, in
// plan order.
func (c *Compositor) fetch(ctx context.Context, square string, steps []Step) ([]layer, error) {
	layers := make([]layer, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range steps {
		g.Go(func() error {
			key := st.Key
			img, err := c.assets.Image(gctx, key)
			if errors.Is(err, ErrMissing) && st.Fallback != "" {
				key = st.Fallback
				img, err = c.assets.Image(gctx, key)
			}
			switch {
			case err == nil:
				layers[i] = layer{step: st, key: key, img: img}
			case st.Required && errors.Is(err, ErrMissing):
				return expedition.Wrap(expedition.CodeBaseLayerMissing,
					fmt.Sprintf("no base map for %s", square), err)
			case st.Required:
				return fmt.Errorf("loading %s layer: %w", st.Name, err)
			case !errors.Is(err, ErrMissing):
				c.logger.Warn("skipping layer", "layer", st.Name, "key", st.Key, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := layers[:0]
	for _, l := range layers {
		if l.img != nil {
			out = append(out, l)
		}
	}
	return out, nil
}

// Render draws req onto a fresh canvas.
func (c *Compositor) Render(ctx context.Context, req Request) (*image.RGBA, error) {
	layers, err := c.fetch(ctx, req.Square, Plan(c.atlas, req))
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for i, l := range layers {
		op := draw.Over
		if i == 0 {
			op = draw.Src
		}
		if l.step.Quadrant != "" {
			paintQuadrant(canvas, l.img, l.step.Quadrant)
			continue
		}
		paint(canvas, canvas.Bounds(), l.img, op)
	}

	c.drawGrid(canvas, req.Current)
	if req.Highlight && req.Current != "" {
		drawBorder(canvas, QuadrantBounds(req.Current), highlightWidth, highlightColor)
	}
	return canvas, nil
}

// RenderPNG renders req and encodes it as PNG.
func (c *Compositor) RenderPNG(ctx context.Context, req Request) ([]byte, error) {
	img, err := c.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// Overlay draws an uploaded path drawing over the square's current base
// art. With a quadrant the drawing is fitted into that quadrant only. The
// result is the new path image for the square, without fog or grid.
func (c *Compositor) Overlay(ctx context.Context, req Request, drawing image.Image, q expedition.QuadrantID) ([]byte, error) {
	base := Plan(c.atlas, Request{Square: req.Square, PathImageKey: req.PathImageKey})[0]
	layers, err := c.fetch(ctx, req.Square, []Step{base})
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	paint(canvas, canvas.Bounds(), layers[0].img, draw.Src)
	target := canvas.Bounds()
	if q != "" {
		target = QuadrantBounds(q)
	}
	paint(canvas, target, drawing, draw.Over)
	return encodePNG(canvas)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// paint scales src into r. Sources already at the target size are copied
// without resampling.
func paint(dst draw.Image, r image.Rectangle, src image.Image, op draw.Op) {
	sb := src.Bounds()
	if sb.Dx() == r.Dx() && sb.Dy() == r.Dy() {
		draw.Draw(dst, r, src, sb.Min, op)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, src, sb, op, nil)
}

// paintQuadrant crops the matching quadrant out of src and draws it over
// the quadrant of dst.
func paintQuadrant(dst draw.Image, src image.Image, q expedition.QuadrantID) {
	dr := QuadrantBounds(q)
	sr := quadrantIn(src.Bounds(), q)
	if sr.Dx() == dr.Dx() && sr.Dy() == dr.Dy() {
		draw.Draw(dst, dr, src, sr.Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dr, src, sr, draw.Over, nil)
}

func (c *Compositor) drawGrid(dst draw.Image, current expedition.QuadrantID) {
	bar := image.NewUniform(gridColor)
	draw.Draw(dst, image.Rect(Width/2-gridWidth/2, 0, Width/2+gridWidth/2, Height), bar, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(0, Height/2-gridWidth/2, Width, Height/2+gridWidth/2), bar, image.Point{}, draw.Over)

	c.faceMu.Lock()
	defer c.faceMu.Unlock()

	ascent := c.face.Metrics().Ascent
	for _, q := range expedition.Quadrants {
		r := QuadrantBounds(q)
		dot := fixed.P(r.Min.X+labelPadding, r.Min.Y+labelPadding).Add(fixed.Point26_6{Y: ascent})

		shadow := &font.Drawer{Dst: dst, Src: image.NewUniform(shadowColor), Face: c.face,
			Dot: dot.Add(fixed.P(4, 4))}
		shadow.DrawString(string(q))

		col := labelColor
		if q == current {
			col = currentColor
		}
		d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: c.face, Dot: dot}
		d.DrawString(string(q))
	}
}

func drawBorder(dst draw.Image, r image.Rectangle, w int, col color.Color) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w),
		image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}
