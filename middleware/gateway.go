// middleware/gateway.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware validates the Bearer token from the Gateway. The
// gateway is the host boundary that has already verified the end user's
// signature; this service only ever trusts identities it forwards.
func GatewayAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("ROULETTE_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ ROULETTE_SERVICE_TOKEN is not set — service cannot authenticate Gateway")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			// EventSource clients cannot set headers; the SSE routes carry
			// the token in the query string instead. It still has to be the
			// gateway token; a wrong or empty value is rejected right here.
			if queryToken := c.Query("token"); queryToken != "" {
				if queryToken != expectedToken {
					log.Printf("❌ [GATEWAY_AUTH] Invalid query token for %s (got prefix: %.10s...)", c.Path(), queryToken)
					return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
						"error": "invalid gateway authentication token",
					})
				}
				return c.Next()
			}
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// Parse "Bearer <token>"
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			// no "Bearer " prefix — try raw value (e.g., if Gateway sends raw token)
			token = authHeader
		}

		if token != expectedToken {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s (got prefix: %.10s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
