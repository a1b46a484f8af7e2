package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rug-roulette-service/handlers"
	"rug-roulette-service/middleware"
	"rug-roulette-service/models"
	"rug-roulette-service/services"
	"rug-roulette-service/utils"
	"rug-roulette-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError turns the driver's unique-constraint violations into
	// gorm.ErrDuplicatedKey, which the entry path relies on to reject double
	// entries.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.GameRound{},
		&models.PlayerEntry{},
		&models.Vault{},
		&models.LedgerAccount{},
		&models.GameEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := utils.NewEnvClock()
	roundService := services.NewRoundService(db, clock)
	ledgerService := services.NewLedgerService(db)
	eventService := services.NewEventService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Outbox dispatch: at-least-once delivery to the subscriber webhook
	dispatchClient := workers.NewEventDispatchClient(db)
	go workers.PollEvents(ctx, dispatchClient, 5*time.Second)

	// Housekeeping: sweep dust and close fully-claimed rounds
	roundService.StartRoundCloser()

	// ✅ Setup routes — enforced Gateway auth + /s/ prefix for user context
	handlers.SetupRoundRoutes(app, roundService, eventService)
	handlers.SetupLedgerRoutes(app, ledgerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Event dispatch worker running (every 5s)")
	log.Println("✅ Round closer running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
