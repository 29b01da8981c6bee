package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/blackjack-advisor/internal/auth"
)

// AuthMiddleware validates API keys. If the authenticator is nil, the
// middleware is a no-op. The key comes from the Authorization header
// (Bearer token format); browsers cannot set headers on WebSocket upgrades,
// so those may pass it as the api_key query parameter instead.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil && websocket.IsWebSocketUpgrade(r) {
				if q := r.URL.Query().Get("api_key"); q != "" {
					apiKey, err = q, nil
				}
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, errorTypeAuthentication, err.Error())
				return
			}

			if err := authenticator.ValidateAPIKey(apiKey); err != nil {
				writeError(w, http.StatusUnauthorized, errorTypeAuthentication, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
