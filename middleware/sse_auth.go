// middleware/sse_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `user_id` from query params.
// EventSource clients cannot set headers, so the stream endpoints accept the
// gateway token via the query string instead.
//
// Usage:
//
//	app.Get("/rounds/:id/events/stream", middleware.SSEAuthMiddleware(), eventService.StreamRoundEventsSSE)
func SSEAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("ROULETTE_SERVICE_TOKEN")

	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		userID := strings.TrimSpace(c.Query("user_id"))

		if accessToken == "" || userID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params on %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or user_id in query",
			})
		}

		if expectedToken == "" || accessToken != expectedToken {
			log.Printf("[SSEAuth] ❌ Invalid token (prefix: %.10s...) for %s", accessToken, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		// Attach to ctx like UserContextMiddleware, but from query
		c.Locals("user_id", userID)

		return c.Next()
	}
}
