package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Auth requires apiKey as a Bearer token or in X-API-Key. An empty apiKey
// disables the check. A public entry ending in "/" exempts every path under
// it; any other entry exempts that exact path.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				writeJSONError(w, http.StatusUnauthorized, "missing authentication token", "unauthenticated")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid authentication token", "unauthenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey refuses requests to the given paths with 403 while apiKey is
// empty. Bets and claims spend the named account's tokens from the server's
// own ledger, so they stay closed until Auth guards them.
func RequireAPIKey(apiKey string, paths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey != "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodOptions && isPublic(r.URL.Path, paths) {
				writeJSONError(w, http.StatusForbidden, "server has no api key configured; this endpoint is disabled", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if p == path || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

func extractToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeJSONError writes the same {"error","kind"} body the handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}{msg, kind})
}
