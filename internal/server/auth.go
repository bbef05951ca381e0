package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/playperu/expedition/internal/expedition"
)

type ctxKey int

const ctxKeyUser ctxKey = iota

var errNoSession = errors.New("no valid session")

func tokenFromRequest(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", errNoSession
	}
	return token, nil
}

// requireUser resolves the bearer token to a user id for the handlers
// below it.
func requireUser(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, expedition.CodeUnauthenticated, "not authenticated")
				return
			}
			userID, err := sessions.UserFromToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, expedition.CodeUnauthenticated, "invalid session token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUser, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyUser).(string)
}
