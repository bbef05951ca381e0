package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"testing"

	"github.com/playperu/expedition/internal/compositor"
	"github.com/playperu/expedition/internal/expedition"
)

func TestSquareImage(t *testing.T) {
	e := setupEnv(t)

	w := e.do(t, http.MethodGet, "/square-image?square=h8&quadrant=Q1&highlight=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("cache control = %q", cc)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != compositor.Width || img.Bounds().Dy() != compositor.Height {
		t.Errorf("size = %v", img.Bounds())
	}
}

func TestSquareImageErrors(t *testing.T) {
	e := setupEnv(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   expedition.Code
	}{
		{"no square", "/square-image", http.StatusBadRequest, expedition.CodeSquareInvalid},
		{"bad square", "/square-image?square=ZZ99", http.StatusBadRequest, expedition.CodeSquareInvalid},
		{"bad quadrant", "/square-image?square=H8&quadrant=Q7", http.StatusBadRequest, expedition.CodeQuadrantInvalid},
		{"no base art", "/square-image?square=G8", http.StatusBadGateway, expedition.CodeBaseLayerMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestSquarePreview(t *testing.T) {
	e := setupEnv(t)

	w := e.do(t, http.MethodGet, "/square-preview?square=H8&quadrant=Q1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var m compositor.Manifest
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Square != "H8" || len(m.Quadrants) != 4 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if len(m.Layers) == 0 || m.Layers[0].URL != "/assets/maps/base/H8.png" {
		t.Errorf("expected the base layer first, got %+v", m.Layers)
	}

	fogged := map[expedition.QuadrantID]bool{}
	for _, q := range m.Quadrants {
		fogged[q.ID] = q.Fogged
	}
	want := map[expedition.QuadrantID]bool{
		expedition.Q1: false, // current
		expedition.Q2: true,
		expedition.Q3: false, // secured
		expedition.Q4: true,
	}
	for q, f := range want {
		if fogged[q] != f {
			t.Errorf("%s fogged = %v, want %v", q, fogged[q], f)
		}
	}
}
