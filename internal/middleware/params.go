package middleware

import (
	"sol-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ParamUUID parses the route parameter name as a uuid; a malformed value is an InvalidInput error.
func ParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewError(domain.ErrInvalidInput, raw, "Invalid UUID format for %s", name)
	}
	return id, nil
}
