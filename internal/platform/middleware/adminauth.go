package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/sambatesdesign/ChimpLink/internal/platform/config"
)

// RequireAdminAuth protects the log/cache/replay surface with HTTP basic auth.
// The stored credential is a bcrypt hash; the username check is constant-time.
func RequireAdminAuth(cfg config.Admin, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || cfg.User == "" || cfg.PasswordHash == "" {
				unauthorized(w)
				return
			}
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
			passOK := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
			if !userOK || !passOK {
				logger.WarnContext(r.Context(), "admin auth rejected", "user", user)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="chimplink"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
