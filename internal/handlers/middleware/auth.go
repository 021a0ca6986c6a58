package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/nmarkelov/simshop/internal/handlers/render"
)

// TokenAuth admits only requests carrying the given bearer token. Callers are
// trusted backends (the bot frontend, the admin panel), not end users, so a
// static token per caller class is enough.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
