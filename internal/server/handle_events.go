package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/expedition/internal/party"
)

const (
	// streamPing keeps idle SSE and WebSocket streams alive through proxies.
	streamPing = 30 * time.Second
	// sseRetryMS is the reconnect delay suggested to EventSource clients.
	sseRetryMS = 3000
)

// handleEvents streams a party's events as server-sent events. Each frame is
// numbered per connection; a reconnecting client refetches the party instead
// of replaying missed frames.
func handleEvents(svc *party.Service, broker *Broker, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := chi.URLParam(r, "id")
		if _, err := svc.Get(r.Context(), partyID); err != nil {
			errs.write(w, r, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			errs.write(w, r, fmt.Errorf("response writer %T cannot stream", w))
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		fmt.Fprintf(w, "retry: %d\n\n", sseRetryMS)
		flusher.Flush()

		ch := broker.Subscribe(partyID)
		defer broker.Unsubscribe(partyID, ch)

		ping := time.NewTicker(streamPing)
		defer ping.Stop()

		var seq uint64
		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				seq++
				fmt.Fprintf(w, "id: %d\nevent: party\ndata: %s\n\n", seq, data)
			case <-ping.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			flusher.Flush()
		}
	}
}
