package middleware

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/auth"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
	UserContextKey   contextKey = "user"
)

// AuthMiddleware validates session tokens and loads the acting user's
// stored record. Permission checks always run against that stored record;
// tokens carry identity only.
type AuthMiddleware struct {
	authService *auth.Service
	revocations auth.RevocationStore
	users       db.UserStore
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service, revocations auth.RevocationStore, users db.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		revocations: revocations,
		users:       users,
	}
}

// Authenticate validates the token, rejects terminated sessions, re-reads
// the stored user record and adds both to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(authHeader)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		revoked, err := m.revocations.IsRevoked(r.Context(), claims.TokenID)
		if err != nil {
			log.WithError(err).Error("revocation check failed")
			http.Error(w, "Session check failed", http.StatusInternalServerError)
			return
		}
		if revoked {
			http.Error(w, "Session terminated", http.StatusUnauthorized)
			return
		}

		// The stored record is the source of truth for permissions.
		user, err := m.users.FindByID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		ctx = context.WithValue(ctx, UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission checks a capability flag on the stored user record.
func (m *AuthMiddleware) RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}
			if !user.Can(perm) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts session claims from request context.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// UserFromContext extracts the stored user record from request context.
func UserFromContext(ctx context.Context) (*models.OrgUser, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.OrgUser)
	return user, ok
}

// shouldSkipAuth determines if authentication should be skipped for a given
// path. Exact matches only; a prefix match would open sibling paths.
func shouldSkipAuth(path string) bool {
	switch path {
	case "/api/auth/login", "/health":
		return true
	}
	return false
}
