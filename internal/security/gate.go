package security

import (
	"context"
	"errors"
	"fmt"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository"
)

// SocketAuthGate validates the bearer credential supplied at the websocket
// handshake. On any failure the connection must be refused before any
// subscription state exists.
type SocketAuthGate struct {
	tokens    TokenManager
	companies repository.CompanyRepository
}

func NewSocketAuthGate(tokens TokenManager, companies repository.CompanyRepository) *SocketAuthGate {
	return &SocketAuthGate{tokens: tokens, companies: companies}
}

// Authenticate resolves a raw token into an identity. Errors are always one
// of the apperrors credential sentinels, so callers can map them to a typed
// close reason.
func (g *SocketAuthGate) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	if rawToken == "" {
		return nil, apperrors.ErrMissingCredential
	}

	claims, err := g.tokens.ValidateToken(rawToken)
	if err != nil {
		return nil, err
	}

	company, err := g.companies.GetByID(ctx, claims.CompanyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("company %d: %w", claims.CompanyID, apperrors.ErrUnknownPrincipal)
		}
		return nil, err
	}
	if !company.Verified {
		return nil, fmt.Errorf("company %d is not verified: %w", company.ID, apperrors.ErrUnknownPrincipal)
	}

	return &domain.Identity{
		CompanyID: claims.CompanyID,
		Email:     claims.Email,
		Roles:     claims.Roles,
	}, nil
}
