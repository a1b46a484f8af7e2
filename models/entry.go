// models/entry.go
package models

import "time"

// PlayerEntry records one player's stake in one round. The composite unique
// index on (round_id, player_id) is what rejects double entry: the second
// create for the same pair fails at the store.
type PlayerEntry struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	RoundID    string `json:"round_id" gorm:"uniqueIndex:idx_round_player;not null"`
	PlayerID   string `json:"player_id" gorm:"uniqueIndex:idx_round_player;index;not null"`
	TokenIndex uint8  `json:"token_index" gorm:"not null"`

	// Claimed flips false -> true exactly once and never reverts.
	Claimed   bool       `json:"claimed" gorm:"not null;default:false"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
