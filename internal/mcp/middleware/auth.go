package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/btouchard/scout/internal/auth"
)

// BearerAuth returns middleware that validates API tokens against tokens.
// An empty TokenSet lets every request through.
func BearerAuth(tokens *auth.TokenSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil || tokens.Empty() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				challengeAuth(w, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				challengeAuth(w, "invalid Authorization header format")
				return
			}

			name, ok := tokens.Validate(strings.TrimSpace(parts[1]))
			if !ok {
				slog.Debug("api token rejected", "remote", r.RemoteAddr)
				invalidToken(w, "invalid token")
				return
			}

			slog.Debug("api token accepted", "name", name)
			next.ServeHTTP(w, r)
		})
	}
}

// challengeAuth sends a 401 with a Bearer challenge for unauthenticated requests.
func challengeAuth(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="scout"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

// invalidToken sends a 401 for requests with an unknown Bearer token.
func invalidToken(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, msg, http.StatusUnauthorized)
}
