// services/ledger_service.go
package services

import (
	"errors"
	"log"

	"rug-roulette-service/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// lockForUpdate adds SELECT ... FOR UPDATE on postgres. The sqlite test
// dialect rejects the clause and serializes writers on its own, so it is
// skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// debitAccount locks the account row and subtracts amount. A missing account
// is treated the same as an empty one. Zero-amount transfers are no-ops, so
// zero-fee rounds stay open to players with no balance at all.
func debitAccount(tx *gorm.DB, accountID string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	var acct models.LedgerAccount
	if err := lockForUpdate(tx).Where("id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrInsufficientFunds
		}
		return err
	}
	if acct.Balance < amount {
		return models.ErrInsufficientFunds
	}
	return tx.Model(&acct).Update("balance", acct.Balance-amount).Error
}

// creditAccount locks (creating if absent) the account row and adds amount.
func creditAccount(tx *gorm.DB, accountID string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	var acct models.LedgerAccount
	err := lockForUpdate(tx).Where("id = ?", accountID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.LedgerAccount{ID: accountID, Balance: amount}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&acct).Update("balance", acct.Balance+amount).Error
}

// creditVault locks the round's vault row and adds amount.
func creditVault(tx *gorm.DB, roundID string, amount uint64) error {
	var vault models.Vault
	if err := lockForUpdate(tx).Where("round_id = ?", roundID).First(&vault).Error; err != nil {
		return err
	}
	return tx.Model(&vault).Update("balance", vault.Balance+amount).Error
}

// debitVault locks the round's vault row and subtracts amount. A shortfall
// here means the books are broken, not that the caller should retry.
func debitVault(tx *gorm.DB, roundID string, amount uint64) error {
	var vault models.Vault
	if err := lockForUpdate(tx).Where("round_id = ?", roundID).First(&vault).Error; err != nil {
		return err
	}
	if vault.Balance < amount {
		return models.ErrInsufficientVaultBalance
	}
	return tx.Model(&vault).Update("balance", vault.Balance-amount).Error
}

// GetMyBalance returns the authenticated user's ledger balance, creating the
// account lazily at zero.
func (s *LedgerService) GetMyBalance(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user ID not found in context"})
	}

	acct := models.LedgerAccount{ID: userID}
	if err := s.DB.FirstOrCreate(&acct, "id = ?", userID).Error; err != nil {
		log.Printf("DB error fetching account %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(acct)
}

// Deposit credits a user's ledger account (admin only). Stands in for the
// on-ramp that funds player balances in production.
func (s *LedgerService) Deposit(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Amount uint64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}
	if req.Amount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return creditAccount(tx, req.UserID, req.Amount)
	})
	if err != nil {
		log.Printf("DB error depositing to %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to deposit"})
	}

	var acct models.LedgerAccount
	s.DB.First(&acct, "id = ?", req.UserID)

	return c.JSON(fiber.Map{"message": "deposit applied", "account": acct})
}

// ListAccounts returns all ledger accounts (admin only).
func (s *LedgerService) ListAccounts(c *fiber.Ctx) error {
	var accounts []models.LedgerAccount
	if err := s.DB.Order("id ASC").Find(&accounts).Error; err != nil {
		log.Printf("DB error listing accounts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(accounts)
}
