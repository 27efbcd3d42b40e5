package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/domain"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and stores the principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}

// VendorScope returns the vendor the request acts on. Vendor-scoped callers
// are pinned to their own vendor; service callers name it in X-Vendor-ID.
func VendorScope(c *fiber.Ctx) (string, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	if principal.Role == domain.RoleService {
		vendorID := strings.TrimSpace(c.Get("X-Vendor-ID"))
		if vendorID == "" {
			return "", apperrors.NewValidationError("X-Vendor-ID header is required", nil)
		}
		return vendorID, nil
	}
	return principal.VendorID, nil
}
