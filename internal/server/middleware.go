package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/srizd/clinishare/backend/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Authenticator resolves a bearer token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Session, error)
}

// AuthMiddleware guards routes behind bearer token authentication.
type AuthMiddleware struct {
	auth Authenticator
}

// NewAuthMiddleware constructs an AuthMiddleware.
func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Require rejects requests without a valid bearer token and stores the
// resolved session on the request context.
func (m *AuthMiddleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "bearer token is required")
			return
		}

		session, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

// sessionFromContext returns the authenticated session, if any.
func sessionFromContext(ctx context.Context) (service.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(service.Session)
	return session, ok
}
