// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"strategy-game-server/logger"
)

// SSEUserMiddleware identifies the subscriber of an event stream. Browsers
// cannot set headers on EventSource, so the gateway may forward the user as
// the `user_id` query parameter instead of X-User-ID.
//
// Usage:
//
//	app.Get("/games/:id/events", middleware.SSEUserMiddleware(), h.StreamEvents)
func SSEUserMiddleware() fiber.Handler {
	log := logger.Component("sse_auth")
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		if userID == "" {
			log.WithField("path", c.Path()).Warn("[SSEAuth] ❌ No user on stream request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing user for event stream",
			})
		}

		c.Locals(string(UserIDContextKey), utils.CopyString(userID))
		return c.Next()
	}
}
