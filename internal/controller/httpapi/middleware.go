package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerAuth wraps next with the controller's one auth rule: when
// apiSecret is empty, auth is disabled (development mode); otherwise every
// request but /health must carry a matching "Authorization: Bearer <secret>"
// header, compared in constant time to avoid a timing oracle on the secret.
func bearerAuth(apiSecret string, next http.Handler) http.Handler {
	if apiSecret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}
