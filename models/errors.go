// models/errors.go
package models

import "errors"

// Domain errors for the round lifecycle and fund accounting. Services map
// these to HTTP status codes; everything else bubbles up as a 500.
var (
	ErrInvalidTokenIndex = errors.New("invalid token index: must be 0-5")
	ErrRoundNotOpen      = errors.New("round is not open for entries")
	ErrRoundNotRugged    = errors.New("round has not been rugged yet")
	ErrNoPlayers         = errors.New("no players in the round")
	ErrNoSurvivor        = errors.New("no survivor has been determined")
	ErrNotASurvivor      = errors.New("entry did not pick the surviving token")
	ErrAlreadyEntered    = errors.New("player already entered this round")
	ErrAlreadyClaimed    = errors.New("winnings already claimed")
	ErrNotAuthority      = errors.New("caller is not the round authority")
	ErrUnclaimedWinnings = errors.New("round still has unclaimed winnings")

	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientVaultBalance means the vault cannot cover a payout the
	// ledger says it owes. Unreachable under correct accounting; treated as a
	// consistency failure, not a retryable condition.
	ErrInsufficientVaultBalance = errors.New("vault balance below owed winnings")
)
