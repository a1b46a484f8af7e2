// handlers/round.go
package handlers

import (
	"rug-roulette-service/middleware"
	"rug-roulette-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRoundRoutes(app *fiber.App, roundService *services.RoundService, eventService *services.EventService) {
	// 🔓 Public reads — *no user context*, but still behind Gateway auth
	app.Get("/rounds", roundService.ListRounds)
	app.Get("/rounds/:id", roundService.GetRound)
	app.Get("/rounds/:id/events", eventService.ListRoundEvents)

	// SSE stream authenticates via query params (EventSource cannot set headers)
	app.Get("/rounds/:id/events/stream", middleware.SSEAuthMiddleware(), eventService.StreamRoundEventsSSE)

	// 🔐 Secured routes — require user context (userID), enforced via middleware
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/rounds", roundService.CreateRound)
	secured.Post("/rounds/:id/entries", roundService.EnterRound)
	secured.Get("/rounds/:id/entries/me", roundService.GetMyEntry)

	// Authority-only transitions (equality check against the round's authority)
	secured.Post("/rounds/:id/rug", roundService.RugRound)
	secured.Post("/rounds/:id/close", roundService.CloseRound)

	secured.Post("/rounds/:id/claims", roundService.ClaimWinnings)
}
