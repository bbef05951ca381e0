package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/party"
)

type JoinRequest struct {
	CharacterID string   `json:"characterId"`
	ItemNames   []string `json:"itemNames"`
}

type ItemsRequest struct {
	ItemNames []string `json:"itemNames"`
}

type RemoveRequest struct {
	UserID string `json:"userId"`
}

type RemoveResponse struct {
	OK              bool   `json:"ok"`
	RemovedUserID   string `json:"removedUserId"`
	RemovedCharName string `json:"removedCharName"`
}

func handleJoin(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "invalid request body")
			return
		}
		req.CharacterID = strings.TrimSpace(req.CharacterID)
		if req.CharacterID == "" {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "characterId is required")
			return
		}

		if _, err := svc.Join(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.CharacterID, req.ItemNames); err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleUpdateItems(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ItemsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "invalid request body")
			return
		}
		if _, err := svc.UpdateItems(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.ItemNames); err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleLeave(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Leave(r.Context(), chi.URLParam(r, "id"), userFrom(r)); err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleRemove(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RemoveRequest
		if err := readJSON(r, &req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "userId is required")
			return
		}

		m, err := svc.Remove(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.UserID)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RemoveResponse{OK: true, RemovedUserID: m.UserID, RemovedCharName: m.Name})
	}
}
