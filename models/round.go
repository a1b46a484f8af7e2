// models/round.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// NumTokens is the fixed number of tokens a player can back in a round.
const NumTokens = 6

type RoundStatus string

const (
	RoundStatusOpen   RoundStatus = "open"   // accepting entries
	RoundStatusRugged RoundStatus = "rugged" // survivor picked, claims open
	RoundStatusClosed RoundStatus = "closed" // dust swept, round archived
)

// TokenCounts holds one entry counter per token. Stored as a JSON column so
// the same model works on postgres and the sqlite test dialect.
type TokenCounts [NumTokens]uint32

func (tc TokenCounts) Total() uint32 {
	var sum uint32
	for _, n := range tc {
		sum += n
	}
	return sum
}

// GameRound is the ledger for one rug-roulette round: configuration, pot and
// participation accumulators, and the lifecycle status. Counters only grow
// while the round is open and freeze at the rug.
//
// Invariants after every committed transaction:
//
//	TotalPot == EntryFee * PlayerCount
//	TokenCounts.Total() == PlayerCount
//	SurvivorToken != nil iff Status != open
type GameRound struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Authority string `json:"authority" gorm:"index;not null"` // only identity allowed to rug/close
	Name      string `json:"name" gorm:"not null"`
	Slug      string `json:"slug" gorm:"uniqueIndex;not null"`

	EntryFee uint64 `json:"entry_fee" gorm:"not null"` // minor units, immutable after create

	TotalPot    uint64      `json:"total_pot" gorm:"not null;default:0"`
	PlayerCount uint32      `json:"player_count" gorm:"not null;default:0"`
	TokenCounts TokenCounts `json:"token_counts" gorm:"serializer:json;type:text"`

	Status        RoundStatus `json:"status" gorm:"type:varchar(16);not null;default:'open';index"`
	SurvivorToken *uint8      `json:"survivor_token,omitempty"` // nil until rugged, then immutable

	RuggedAt  *time.Time     `json:"rugged_at,omitempty"`
	ClosedAt  *time.Time     `json:"closed_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// RecordEntry applies one accepted entry to the round's accumulators. The
// caller is responsible for having moved the entry fee into the vault and for
// creating the PlayerEntry row in the same transaction.
func (r *GameRound) RecordEntry(tokenIndex uint8) error {
	if tokenIndex >= NumTokens {
		return ErrInvalidTokenIndex
	}
	if r.Status != RoundStatusOpen {
		return ErrRoundNotOpen
	}
	r.TotalPot += r.EntryFee
	r.PlayerCount++
	r.TokenCounts[tokenIndex]++
	return nil
}

// PullRug freezes the round and picks the surviving token from the current
// slot and wall-clock time: survivor = (slot + unix) mod NumTokens, with
// wrapping addition.
//
// This is NOT secure randomness. Slot and timestamp are public and
// predictable before the triggering request lands, so the authority (or
// anyone watching the clock) can bias the outcome. Kept as-is deliberately;
// swapping in a VRF would change observable behavior and belongs to an
// external oracle.
func (r *GameRound) PullRug(slot uint64, unixTime int64) error {
	if r.Status != RoundStatusOpen {
		return ErrRoundNotOpen
	}
	if r.PlayerCount == 0 {
		return ErrNoPlayers
	}
	seed := slot + uint64(unixTime)
	survivor := uint8(seed % NumTokens)
	now := time.Now()
	r.SurvivorToken = &survivor
	r.Status = RoundStatusRugged
	r.RuggedAt = &now
	return nil
}

// SurvivorCount returns how many entries backed the surviving token.
func (r *GameRound) SurvivorCount() (uint32, error) {
	if r.SurvivorToken == nil {
		return 0, ErrNoSurvivor
	}
	return r.TokenCounts[*r.SurvivorToken], nil
}

// Winnings is the per-survivor payout: floor(TotalPot / survivor count).
// Integer division strands up to survivors-1 minor units of dust in the
// vault; that matches the source behavior and is only recovered by the
// close/sweep path.
func (r *GameRound) Winnings() (uint64, error) {
	survivors, err := r.SurvivorCount()
	if err != nil {
		return 0, err
	}
	if survivors == 0 {
		return 0, ErrNoSurvivor
	}
	return r.TotalPot / uint64(survivors), nil
}

// ValidateClaim checks whether the given entry may claim a payout right now.
func (r *GameRound) ValidateClaim(entry *PlayerEntry) error {
	if r.Status != RoundStatusRugged {
		return ErrRoundNotRugged
	}
	if entry.Claimed {
		return ErrAlreadyClaimed
	}
	if r.SurvivorToken == nil {
		return ErrNoSurvivor
	}
	if entry.TokenIndex != *r.SurvivorToken {
		return ErrNotASurvivor
	}
	return nil
}
