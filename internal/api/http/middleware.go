package http

import (
	"context"
	"net/http"
	"strings"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/security"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware validates the bearer credential on every API request and
// injects the resulting identity into the request context.
type AuthMiddleware struct {
	tokens security.TokenManager
}

func NewAuthMiddleware(tokens security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, apperrors.ErrMissingCredential)
			return
		}
		token := auth
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			token = auth[7:]
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			writeError(w, err)
			return
		}

		identity := &domain.Identity{
			CompanyID: claims.CompanyID,
			Email:     claims.Email,
			Roles:     claims.Roles,
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

func withIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated principal, or nil when the
// request skipped the auth middleware.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(identityKey).(*domain.Identity)
	return identity
}
