// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"strategy-game-server/logger"
)

type contextKey string

const UserIDContextKey contextKey = "user_id"

// UserContextMiddleware extracts the user identity set by Gateway and
// rejects requests that carry none.
func UserContextMiddleware() fiber.Handler {
	log := logger.Component("user_ctx")
	return func(c *fiber.Ctx) error {
		// Header values alias fasthttp's request buffer; stored IDs must own their bytes.
		userID := utils.CopyString(strings.TrimSpace(c.Get("X-User-ID")))
		if userID == "" {
			log.WithField("path", c.Path()).Warn("❌ X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		// Attach to ctx for handlers
		c.Locals(string(UserIDContextKey), userID)
		return c.Next()
	}
}

// UserID returns the caller set by one of the user middlewares, falling back
// to the raw gateway header on public routes. Empty means anonymous.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(string(UserIDContextKey)).(string); ok && id != "" {
		return id
	}
	return utils.CopyString(strings.TrimSpace(c.Get("X-User-ID")))
}
