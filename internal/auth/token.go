package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

// TokenManager validates bearer tokens issued by the platform's identity
// provider and can mint tokens for service callers and tests.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes JWT payload.
type Claims struct {
	VendorID string      `json:"vendor_id,omitempty"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the principal.
func (tm *TokenManager) GenerateToken(principal domain.Principal, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		VendorID: principal.VendorID,
		Role:     principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.SubjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the token and returns the principal it carries.
func (tm *TokenManager) ParseToken(tokenStr string) (*domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	switch claims.Role {
	case domain.RoleVendor, domain.RoleAgent:
		if claims.VendorID == "" {
			return nil, errors.New("vendor scope missing")
		}
	case domain.RoleService:
	default:
		return nil, errors.New("unknown role")
	}
	return &domain.Principal{SubjectID: claims.Subject, VendorID: claims.VendorID, Role: claims.Role}, nil
}
