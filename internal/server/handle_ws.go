package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/expedition/internal/party"
)

// handlePartyWS streams the same events as handleEvents over a WebSocket.
// The stream is one-way: a message from the client closes it.
func handlePartyWS(svc *party.Service, broker *Broker, logger *slog.Logger, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := chi.URLParam(r, "id")
		if _, err := svc.Get(r.Context(), partyID); err != nil {
			errs.write(w, r, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch := broker.Subscribe(partyID)
		defer broker.Unsubscribe(partyID, ch)

		ctx := conn.CloseRead(r.Context())
		ping := time.NewTicker(streamPing)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed", "party_id", partyID)
				return
			case data := <-ch:
				wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := conn.Write(wctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					logger.Debug("websocket write failed", "party_id", partyID, "error", err)
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					logger.Debug("websocket ping failed", "party_id", partyID, "error", err)
					return
				}
			}
		}
	}
}
