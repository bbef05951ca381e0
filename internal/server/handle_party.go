package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/party"
)

// CreatePartyRequest is the request body for POST /parties.
type CreatePartyRequest struct {
	Region      string   `json:"region"`
	Square      string   `json:"square"`
	Quadrant    string   `json:"quadrant"`
	CharacterID string   `json:"characterId"`
	ItemNames   []string `json:"itemNames"`
}

type CreatePartyResponse struct {
	OK      bool   `json:"ok"`
	PartyID string `json:"partyId"`
}

func handleCreateParty(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePartyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "invalid request body")
			return
		}
		if req.Region == "" || req.Square == "" || req.Quadrant == "" || req.CharacterID == "" {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid,
				"region, square, quadrant and characterId are required")
			return
		}

		p, err := svc.Create(r.Context(), userFrom(r), party.CreateInput{
			Region:      req.Region,
			Square:      req.Square,
			Quadrant:    req.Quadrant,
			CharacterID: req.CharacterID,
			ItemNames:   req.ItemNames,
		})
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, CreatePartyResponse{OK: true, PartyID: p.PartyID})
	}
}

func handleGetParty(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
