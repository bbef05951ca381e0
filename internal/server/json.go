package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/expedition/internal/expedition"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error  string          `json:"error"`
	Code   expedition.Code `json:"code"`
	Detail string          `json:"detail,omitempty"`
}

// OKResponse acknowledges a command without further data.
type OKResponse struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. An empty body leaves v as is.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, code expedition.Code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func statusOf(k expedition.Kind) int {
	switch k {
	case expedition.KindValidation:
		return http.StatusBadRequest
	case expedition.KindUnauthenticated:
		return http.StatusUnauthorized
	case expedition.KindAuthorization:
		return http.StatusForbidden
	case expedition.KindNotFound:
		return http.StatusNotFound
	case expedition.KindConflict:
		return http.StatusConflict
	case expedition.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorWriter renders service errors. Causes are logged, and echoed to the
// client only outside production.
type errorWriter struct {
	logger     *slog.Logger
	production bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: "internal error", Code: expedition.CodeUnknown}
	var de *expedition.Error
	if errors.As(err, &de) {
		resp.Error = de.Message
		resp.Code = de.Code
	}
	status := statusOf(resp.Code.Kind())

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"code", resp.Code,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if !e.production && (de == nil || de.Err != nil) {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
