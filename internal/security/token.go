package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleetmarket-backend/internal/apperrors"
)

// CompanyClaims defines the claims carried by a marketplace credential. The
// upstream identity provider issues these; this service only validates.
type CompanyClaims struct {
	CompanyID int32    `json:"company_id"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager interface {
	GenerateToken(companyID int32, email string, roles []string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*CompanyClaims, error)
}

type tokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) TokenManager {
	return &tokenManager{secret: []byte(secret)}
}

// GenerateToken exists for tests and tooling; production tokens come from the
// upstream auth service sharing the same secret.
func (m *tokenManager) GenerateToken(companyID int32, email string, roles []string, ttl time.Duration) (string, error) {
	claims := CompanyClaims{
		CompanyID: companyID,
		Email:     email,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(companyID)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "fleetmarket-auth",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*CompanyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CompanyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrInvalidCredential
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrExpiredCredential
		}
		return nil, apperrors.ErrInvalidCredential
	}

	claims, ok := token.Claims.(*CompanyClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrInvalidCredential
	}
	if claims.CompanyID == 0 && claims.Subject != "" {
		id, _ := strconv.Atoi(claims.Subject)
		claims.CompanyID = int32(id)
	}
	return claims, nil
}
