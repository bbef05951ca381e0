package server

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/party"
)

// maxUploadBytes bounds a drawn path image upload.
const maxUploadBytes = 8 << 20

type PathImageResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// handlePathImageUpload accepts a multipart form with partyId, optional
// squareId and quadrantId fields, and the drawing in the "file" part.
func handlePathImageUpload(svc *party.Service, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, http.StatusRequestEntityTooLarge, expedition.CodeImageInvalid, "image is too large")
				return
			}
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "expected a multipart form")
			return
		}
		partyID := r.FormValue("partyId")
		if partyID == "" {
			writeError(w, http.StatusBadRequest, expedition.CodeRequestInvalid, "partyId is required")
			return
		}

		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeImageInvalid, "image file is required")
			return
		}
		defer f.Close()
		drawing, _, err := image.Decode(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, expedition.CodeImageInvalid, "image must be a PNG or JPEG")
			return
		}

		url, err := svc.DrawPath(r.Context(), partyID, userFrom(r), r.FormValue("squareId"), r.FormValue("quadrantId"), drawing)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, PathImageResponse{OK: true, URL: url})
	}
}
