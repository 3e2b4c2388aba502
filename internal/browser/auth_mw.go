package browser

import (
	"context"
	"errors"
	"net/http"

	"CatalogLens/internal/browse"
	"CatalogLens/pkg/kit"
)

type ctxKey string

const sessionKey ctxKey = "session"

func SessionFromContext(ctx context.Context) (*browse.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*browse.Session)
	return s, ok
}

// SessionAuth resolves the bearer token to a live session. Browsers cannot
// set headers on a websocket handshake, so a token query parameter is
// accepted as well.
func SessionAuth(tokens *TokenMaker, sessions *browse.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := kit.BearerToken(r)
			if !ok {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			s, err := sessions.Get(claims.SessionID)
			if errors.Is(err, browse.ErrSessionNotFound) {
				kit.WriteError(w, r, http.StatusNotFound, "session not found", nil)
				return
			}
			if err != nil {
				kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
