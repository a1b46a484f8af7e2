// services/round_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"rug-roulette-service/models"
	"rug-roulette-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type RoundService struct {
	DB    *gorm.DB
	Clock utils.SlotClock
}

func NewRoundService(db *gorm.DB, clock utils.SlotClock) *RoundService {
	return &RoundService{DB: db, Clock: clock}
}

// Event payloads, matching the fields the original settlement events carried.
type roundCreatedPayload struct {
	RoundID   string `json:"round_id"`
	Authority string `json:"authority"`
	EntryFee  uint64 `json:"entry_fee"`
}

type playerEnteredPayload struct {
	RoundID    string `json:"round_id"`
	PlayerID   string `json:"player_id"`
	TokenIndex uint8  `json:"token_index"`
	TotalPot   uint64 `json:"total_pot"`
}

type rugPulledPayload struct {
	RoundID       string `json:"round_id"`
	SurvivorToken uint8  `json:"survivor_token"`
	TotalPot      uint64 `json:"total_pot"`
	SurvivorCount uint32 `json:"survivor_count"`
}

type winningsClaimedPayload struct {
	RoundID  string `json:"round_id"`
	PlayerID string `json:"player_id"`
	Amount   uint64 `json:"amount"`
}

type roundClosedPayload struct {
	RoundID string `json:"round_id"`
	Swept   uint64 `json:"swept"`
}

var titleCaser = cases.Title(language.English)

// domainStatus maps domain errors to HTTP status codes. Validation and
// state-machine failures are 400, authorization and losing claims 403,
// double entry/claim 409, fund shortfalls 402, broken books 500.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidTokenIndex),
		errors.Is(err, models.ErrRoundNotOpen),
		errors.Is(err, models.ErrRoundNotRugged),
		errors.Is(err, models.ErrNoPlayers),
		errors.Is(err, models.ErrNoSurvivor),
		errors.Is(err, models.ErrUnclaimedWinnings):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotAuthority),
		errors.Is(err, models.ErrNotASurvivor):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrAlreadyEntered),
		errors.Is(err, models.ErrAlreadyClaimed):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	default:
		// includes ErrInsufficientVaultBalance: consistency failure
		return fiber.StatusInternalServerError
	}
}

func respondDomainError(c *fiber.Ctx, err error) error {
	status := domainStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ round operation failed: %v", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// CreateRound opens a new round and its vault.
// POST /s/rounds
func (s *RoundService) CreateRound(c *fiber.Ctx) error {
	authority, _ := c.Locals("user_id").(string)
	if authority == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}

	var req struct {
		Name     string `json:"name"`
		EntryFee uint64 `json:"entry_fee"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// A zero entry fee is deliberately allowed; the source never rejected it.
	if req.EntryFee == 0 {
		log.Printf("⚠️  Opening round with zero entry fee (authority %s)", authority)
	}

	roundID := uuid.NewString()
	name := req.Name
	if name == "" {
		name = "rug roulette"
	}
	name = titleCaser.String(name)

	round := &models.GameRound{
		ID:        roundID,
		Authority: authority,
		Name:      name,
		// Suffix keeps slugs unique across identically named rounds.
		Slug:     slug.Make(name) + "-" + roundID[:8],
		EntryFee: req.EntryFee,
		Status:   models.RoundStatusOpen,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(round).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Vault{ID: uuid.NewString(), RoundID: roundID}).Error; err != nil {
			return err
		}
		return recordEvent(tx, roundID, models.EventRoundCreated, roundCreatedPayload{
			RoundID:   roundID,
			Authority: authority,
			EntryFee:  req.EntryFee,
		})
	})
	if err != nil {
		log.Printf("DB error creating round: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create round"})
	}

	log.Printf("✅ Round %s opened by %s (entry fee %d)", round.Slug, authority, req.EntryFee)
	return c.Status(fiber.StatusCreated).JSON(round)
}

// EnterRound stakes the entry fee on one token. All effects (fund transfer,
// entry creation, counter bumps, event) commit as one transaction; any
// failure rolls the whole thing back.
// POST /s/rounds/:id/entries
func (s *RoundService) EnterRound(c *fiber.Ctx) error {
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var req struct {
		TokenIndex uint8 `json:"token_index"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.TokenIndex >= models.NumTokens {
		return respondDomainError(c, models.ErrInvalidTokenIndex)
	}

	var round models.GameRound
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Locking the round row serializes all entries into this round, so
		// the counter read-modify-write below is race-free.
		if err := lockForUpdate(tx).Where("id = ?", roundID).First(&round).Error; err != nil {
			return err
		}
		if round.Status != models.RoundStatusOpen {
			return models.ErrRoundNotOpen
		}

		var existing int64
		if err := tx.Model(&models.PlayerEntry{}).
			Where("round_id = ? AND player_id = ?", roundID, playerID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.ErrAlreadyEntered
		}

		// Stake intake: player -> vault.
		if err := debitAccount(tx, playerID, round.EntryFee); err != nil {
			return err
		}
		if err := creditVault(tx, roundID, round.EntryFee); err != nil {
			return err
		}

		entry := &models.PlayerEntry{
			ID:         uuid.NewString(),
			RoundID:    roundID,
			PlayerID:   playerID,
			TokenIndex: req.TokenIndex,
		}
		if err := tx.Create(entry).Error; err != nil {
			// Unique (round_id, player_id) index is the backstop.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.ErrAlreadyEntered
			}
			return err
		}

		if err := round.RecordEntry(req.TokenIndex); err != nil {
			return err
		}
		if err := tx.Save(&round).Error; err != nil {
			return err
		}

		return recordEvent(tx, roundID, models.EventPlayerEntered, playerEnteredPayload{
			RoundID:    roundID,
			PlayerID:   playerID,
			TokenIndex: req.TokenIndex,
			TotalPot:   round.TotalPot,
		})
	})
	if err != nil {
		return respondDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "entry accepted",
		"round_id":    roundID,
		"token_index": req.TokenIndex,
		"total_pot":   round.TotalPot,
	})
}

// RugRound freezes the round and picks the survivor. Authority only, once.
// POST /s/rounds/:id/rug
func (s *RoundService) RugRound(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	if callerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var round models.GameRound
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", roundID).First(&round).Error; err != nil {
			return err
		}
		if round.Authority != callerID {
			return models.ErrNotAuthority
		}
		if err := round.PullRug(s.Clock.Slot(), s.Clock.Unix()); err != nil {
			return err
		}
		if err := tx.Save(&round).Error; err != nil {
			return err
		}

		survivorCount, err := round.SurvivorCount()
		if err != nil {
			return err
		}
		return recordEvent(tx, roundID, models.EventRugPulled, rugPulledPayload{
			RoundID:       roundID,
			SurvivorToken: *round.SurvivorToken,
			TotalPot:      round.TotalPot,
			SurvivorCount: survivorCount,
		})
	})
	if err != nil {
		return respondDomainError(c, err)
	}

	log.Printf("🪤 Rug pulled on round %s: token %d survives (%d players, pot %d)",
		round.Slug, *round.SurvivorToken, round.PlayerCount, round.TotalPot)
	return c.JSON(round)
}

// ClaimWinnings pays a surviving entry its floor share of the pot, exactly
// once. Repeat calls fail with no side effects.
// POST /s/rounds/:id/claims
func (s *RoundService) ClaimWinnings(c *fiber.Ctx) error {
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var winnings uint64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.GameRound
		if err := lockForUpdate(tx).Where("id = ?", roundID).First(&round).Error; err != nil {
			return err
		}

		var entry models.PlayerEntry
		if err := lockForUpdate(tx).
			Where("round_id = ? AND player_id = ?", roundID, playerID).
			First(&entry).Error; err != nil {
			return err
		}

		if err := round.ValidateClaim(&entry); err != nil {
			return err
		}

		var err error
		winnings, err = round.Winnings()
		if err != nil {
			return err
		}

		// Payout: vault -> player. Lock order (round, entry, account, vault)
		// matches EnterRound so concurrent enters and claims cannot deadlock.
		if err := creditAccount(tx, playerID, winnings); err != nil {
			return err
		}
		if err := debitVault(tx, roundID, winnings); err != nil {
			return err
		}

		now := time.Now()
		entry.Claimed = true
		entry.ClaimedAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return err
		}

		return recordEvent(tx, roundID, models.EventWinningsClaimed, winningsClaimedPayload{
			RoundID:  roundID,
			PlayerID: playerID,
			Amount:   winnings,
		})
	})
	if err != nil {
		return respondDomainError(c, err)
	}

	log.Printf("💰 Player %s claimed %d from round %s", playerID, winnings, roundID)
	return c.JSON(fiber.Map{
		"message":  "winnings claimed",
		"round_id": roundID,
		"amount":   winnings,
	})
}

// CloseRound sweeps whatever is left in the vault (rounding dust, or the
// whole pot when no one backed the survivor) to the authority and archives
// the round. Only allowed once every winning entry has claimed.
// POST /s/rounds/:id/close
func (s *RoundService) CloseRound(c *fiber.Ctx) error {
	callerID, _ := c.Locals("user_id").(string)
	if callerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	swept, err := s.sweepAndClose(roundID, callerID)
	if err != nil {
		return respondDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "round closed",
		"round_id": roundID,
		"swept":    swept,
	})
}

// sweepAndClose is the shared close path. callerID == "" means the closer
// job is calling and the authority check is skipped; the swept funds still
// go to the round's authority.
func (s *RoundService) sweepAndClose(roundID, callerID string) (uint64, error) {
	var swept uint64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.GameRound
		if err := lockForUpdate(tx).Where("id = ?", roundID).First(&round).Error; err != nil {
			return err
		}
		if callerID != "" && round.Authority != callerID {
			return models.ErrNotAuthority
		}
		if round.Status != models.RoundStatusRugged {
			return models.ErrRoundNotRugged
		}

		var pending int64
		if err := tx.Model(&models.PlayerEntry{}).
			Where("round_id = ? AND token_index = ? AND claimed = ?", roundID, *round.SurvivorToken, false).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return models.ErrUnclaimedWinnings
		}

		var vault models.Vault
		if err := lockForUpdate(tx).Where("round_id = ?", roundID).First(&vault).Error; err != nil {
			return err
		}
		swept = vault.Balance
		if swept > 0 {
			if err := creditAccount(tx, round.Authority, swept); err != nil {
				return err
			}
			if err := tx.Model(&vault).Update("balance", uint64(0)).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		round.Status = models.RoundStatusClosed
		round.ClosedAt = &now
		if err := tx.Save(&round).Error; err != nil {
			return err
		}

		return recordEvent(tx, roundID, models.EventRoundClosed, roundClosedPayload{
			RoundID: roundID,
			Swept:   swept,
		})
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		log.Printf("🧹 Swept %d leftover units from round %s to authority", swept, roundID)
	}
	return swept, nil
}

// GetRound returns one round by ID.
// GET /rounds/:id
func (s *RoundService) GetRound(c *fiber.Ctx) error {
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var round models.GameRound
	if err := s.DB.First(&round, "id = ?", roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Round not found"})
		}
		log.Printf("DB error fetching round %s: %v", roundID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(round)
}

// ListRounds returns rounds, optionally filtered by status.
// GET /rounds?status=open
func (s *RoundService) ListRounds(c *fiber.Ctx) error {
	query := s.DB.Order("created_at DESC")

	switch status := models.RoundStatus(c.Query("status")); status {
	case "":
		// no filter
	case models.RoundStatusOpen, models.RoundStatusRugged, models.RoundStatusClosed:
		query = query.Where("status = ?", status)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown status %q", status)})
	}

	var rounds []models.GameRound
	if err := query.Find(&rounds).Error; err != nil {
		log.Printf("DB error listing rounds: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch rounds"})
	}

	return c.JSON(rounds)
}

// GetMyEntry returns the authenticated player's entry in a round.
// GET /s/rounds/:id/entries/me
func (s *RoundService) GetMyEntry(c *fiber.Ctx) error {
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var entry models.PlayerEntry
	if err := s.DB.Where("round_id = ? AND player_id = ?", roundID, playerID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no entry for this round"})
		}
		log.Printf("DB error fetching entry: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(entry)
}
