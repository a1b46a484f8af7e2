// models/account.go
package models

import "time"

// LedgerAccount holds a participant's spendable balance in minor units.
// It stands in for the host chain's value store: stake intake debits it,
// payouts credit it. The ID is the same identity the gateway passes in
// X-User-ID, with the round authority holding an account like anyone else.
type LedgerAccount struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Balance uint64 `json:"balance" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
