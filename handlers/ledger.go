// handlers/ledger.go
package handlers

import (
	"rug-roulette-service/middleware"
	"rug-roulette-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App, ledgerService *services.LedgerService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Get("/ledger/me", ledgerService.GetMyBalance)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin")
	admin.Post("/ledger/deposit", ledgerService.Deposit)
	admin.Get("/ledger/accounts", ledgerService.ListAccounts)
}
