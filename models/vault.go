// models/vault.go
package models

import "time"

// Vault is the custodial balance for one round's pooled stakes. It is owned
// by the system, not by any player; only the enter, claim, and close paths
// move funds through it, always inside the round's transaction.
type Vault struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	RoundID string `json:"round_id" gorm:"uniqueIndex;not null"`
	Balance uint64 `json:"balance" gorm:"not null;default:0"` // minor units

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
