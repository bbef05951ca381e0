package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"github.com/playperu/expedition/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	errs := errorWriter{logger: logger, production: deps.Production}
	svc := deps.Parties

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", handleSwaggerUI())
	r.Mount("/healthz", health.NewHandler(logger, deps.Health).Routes())

	// Streams stay outside the compressed group so every event is flushed
	// as it happens.
	r.Get("/parties/{id}/events", handleEvents(svc, deps.Broker, errs))
	r.Get("/parties/{id}/ws", handlePartyWS(svc, deps.Broker, logger, errs))

	r.Group(func(r chi.Router) {
		r.Use(compress)

		r.Get("/parties/{id}", handleGetParty(svc, errs))
		r.Get("/square-image", handleSquareImage(deps.Gallery, errs))
		r.Get("/square-preview", handleSquarePreview(deps.Gallery, errs))

		r.Group(func(r chi.Router) {
			r.Use(requireUser(deps.Sessions))

			r.Post("/parties", handleCreateParty(svc, errs))
			r.Post("/parties/{id}/join", handleJoin(svc, errs))
			r.Patch("/parties/{id}/items", handleUpdateItems(svc, errs))
			r.Post("/parties/{id}/leave", handleLeave(svc, errs))
			r.Post("/parties/{id}/remove", handleRemove(svc, errs))
			r.Post("/parties/{id}/start", handleStart(svc, errs))
			r.Post("/parties/{id}/cancel", handleCancel(svc, errs))
			r.Post("/parties/{id}/reveal", handleReveal(svc, errs))
			r.Post("/parties/{id}/end", handleEnd(svc, errs))
			r.Post("/path-images/upload", handlePathImageUpload(svc, errs))
		})
	})

	if deps.Assets != nil {
		logger.Info("serving stored assets", "path", deps.AssetsPath)
		r.Mount(deps.AssetsPath, deps.Assets)
	}
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
