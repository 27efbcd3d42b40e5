package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/api/dto"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/domain"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// bindJSON parses the body into req and runs tag validation.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// actor returns the audit identifier of the caller.
func actor(c *fiber.Ctx) string {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.ActorSystem
	}
	return principal.Actor()
}

func changedBy(c *fiber.Ctx) domain.ChangedBy {
	principal, ok := auth.PrincipalFromContext(c)
	if ok && principal.Role == domain.RoleService {
		return domain.ChangedBySystem
	}
	return domain.ChangedByVendor
}

func parseBoolQuery(c *fiber.Ctx, key string, defaultVal bool) bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

// pagination returns limit and offset from page and page_size.
func pagination(c *fiber.Ctx) (int, int) {
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 50)
	if pageSize > 200 {
		pageSize = 200
	}
	return pageSize, (page - 1) * pageSize
}

func splitQuery(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
