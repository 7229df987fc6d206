package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/townserver/internal/api/apierr"
	"github.com/mcoot/townserver/internal/services/auth"
)

type contextKey string

const moderatorContextKey contextKey = "moderator"

// ModeratorAuth requires HTTP basic auth credentials of a configured moderator
func ModeratorAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !authService.VerifyModerator(username, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="townserver"`)
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), moderatorContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetModerator returns the authenticated moderator's username
func GetModerator(ctx context.Context) string {
	name, _ := ctx.Value(moderatorContextKey).(string)
	return name
}
