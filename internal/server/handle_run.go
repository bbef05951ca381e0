package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/mapsync"
	"github.com/playperu/expedition/internal/party"
)

type StartResponse struct {
	OK        bool   `json:"ok"`
	ThreadID  string `json:"threadId"`
	ThreadURL string `json:"threadUrl,omitempty"`
}

type RevealRequest struct {
	Square   string `json:"square"`
	Quadrant string `json:"quadrant"`
}

type RevealResponse struct {
	OK           bool               `json:"ok"`
	Square       string             `json:"square"`
	Quadrants    []mapsync.Quadrant `json:"quadrants"`
	PathImageURL string             `json:"pathImageUrl,omitempty"`
}

type EndRequest struct {
	Outcome expedition.Outcome `json:"outcome"`
}

type EndResponse struct {
	OK      bool               `json:"ok"`
	Outcome expedition.Outcome `json:"outcome"`
}

func handleStart(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Start(r.Context(), chi.URLParam(r, "id"), userFrom(r))
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, StartResponse{OK: true, ThreadID: res.ThreadID, ThreadURL: res.ThreadURL})
	}
}

func handleCancel(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), userFrom(r)); err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleReveal(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RevealRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "invalid request body")
			return
		}

		v, err := svc.Reveal(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.Square, req.Quadrant)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RevealResponse{
			OK:           true,
			Square:       v.SquareID,
			Quadrants:    v.Quadrants,
			PathImageURL: v.PathImageURL,
		})
	}
}

func handleEnd(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EndRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "invalid request body")
			return
		}

		p, err := svc.End(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.Outcome)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, EndResponse{OK: true, Outcome: p.Outcome})
	}
}
