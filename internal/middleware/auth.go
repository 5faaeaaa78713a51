package middleware

import (
	"sol-backend/internal/domain"
	"sol-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := Actor(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// Actor resolves the session user into the identity passed to the services.
// ok is false when there is no user or its user_id is not a uuid.
func Actor(c *fiber.Ctx) (domain.Actor, bool) {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return domain.Actor{}, false
	}
	raw, _ := m["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return domain.Actor{}, false
	}
	role, _ := m["role"].(string)
	return domain.Actor{UserID: id, Role: role}, true
}
