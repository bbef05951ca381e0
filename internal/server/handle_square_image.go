package server

import (
	"net/http"
	"strconv"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/gallery"
)

// squareQuery reads ?square=H8&quadrant=Q1&noMask=1&highlight=1.
func squareQuery(r *http.Request) (gallery.Query, error) {
	v := r.URL.Query()
	q := gallery.Query{Square: v.Get("square")}
	if q.Square == "" {
		return q, expedition.E(expedition.CodeSquareInvalid, "square is required")
	}
	if s := v.Get("quadrant"); s != "" {
		id, err := expedition.ParseQuadrant(s)
		if err != nil {
			return q, err
		}
		q.Quadrant = id
	}
	q.NoMask, _ = strconv.ParseBool(v.Get("noMask"))
	q.Highlight, _ = strconv.ParseBool(v.Get("highlight"))
	return q, nil
}

func handleSquareImage(g *gallery.Gallery, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := squareQuery(r)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		b, err := g.SquarePNG(r.Context(), q)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func handleSquarePreview(g *gallery.Gallery, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := squareQuery(r)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		m, err := g.Preview(r.Context(), q)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
