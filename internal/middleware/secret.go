package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// RequireSecret rejects requests whose "secret" query parameter does not
// match secret. An empty secret rejects everything.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				slog.Warn("Rejected request with invalid secret", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"invalid secret key"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
