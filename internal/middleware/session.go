package middleware

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Sessions are written by the identity service; this API only reads them.
const (
	SessionCookieName  = "sol.sid"
	SessionRedisPrefix = "session:"
)

// SessionUser is the shape the identity service stores under "user".
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Session loads the session named by the sol.sid cookie from Redis and exposes its "user" in Locals.
// A missing or unreadable session leaves the request anonymous.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		// Signed cookies look like "s:id.signature"; the id is the first part.
		if strings.HasPrefix(sessionID, "s:") {
			sessionID = strings.SplitN(sessionID[2:], ".", 2)[0]
		}
		c.Locals(userLocal, nil)
		if sessionID == "" || rdb == nil {
			return c.Next()
		}
		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data map[string]interface{}
		if err := json.Unmarshal(b, &data); err != nil {
			log.Warn().Err(err).Msg("session payload is not JSON")
			return c.Next()
		}
		if u, ok := data["user"].(map[string]interface{}); ok {
			c.Locals(userLocal, u)
		}
		c.Locals("session_id", sessionID)
		return c.Next()
	}
}

// GetSessionID returns the current session ID from context.
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}
