package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRound(entryFee uint64) *GameRound {
	return &GameRound{
		ID:        "round-1",
		Authority: "authority-1",
		EntryFee:  entryFee,
		Status:    RoundStatusOpen,
	}
}

func TestRecordEntryMaintainsInvariants(t *testing.T) {
	r := openRound(100)

	tokens := []uint8{0, 2, 2, 5, 2, 5, 1}
	for i, token := range tokens {
		require.NoError(t, r.RecordEntry(token))

		assert.Equal(t, r.EntryFee*uint64(i+1), r.TotalPot, "pot must equal fee * players after entry %d", i)
		assert.Equal(t, uint32(i+1), r.PlayerCount)
		assert.Equal(t, r.PlayerCount, r.TokenCounts.Total(), "token counts must sum to player count")
	}

	assert.Equal(t, TokenCounts{1, 1, 3, 0, 0, 2}, r.TokenCounts)
}

func TestRecordEntryRejectsBadToken(t *testing.T) {
	r := openRound(100)

	err := r.RecordEntry(NumTokens)
	require.ErrorIs(t, err, ErrInvalidTokenIndex)

	assert.Zero(t, r.TotalPot)
	assert.Zero(t, r.PlayerCount)
	assert.Zero(t, r.TokenCounts.Total())
}

func TestRecordEntryRejectsRuggedRound(t *testing.T) {
	r := openRound(100)
	require.NoError(t, r.RecordEntry(3))
	require.NoError(t, r.PullRug(1, 1))

	potBefore := r.TotalPot
	err := r.RecordEntry(3)
	require.ErrorIs(t, err, ErrRoundNotOpen)
	assert.Equal(t, potBefore, r.TotalPot)
	assert.Equal(t, uint32(1), r.PlayerCount)
}

func TestPullRugRequiresPlayers(t *testing.T) {
	r := openRound(100)

	err := r.PullRug(10, 20)
	require.ErrorIs(t, err, ErrNoPlayers)
	assert.Equal(t, RoundStatusOpen, r.Status)
	assert.Nil(t, r.SurvivorToken)
}

func TestPullRugIsIrreversible(t *testing.T) {
	r := openRound(100)
	require.NoError(t, r.RecordEntry(4))

	require.NoError(t, r.PullRug(7, 0)) // seed 7 -> token 1
	require.NotNil(t, r.SurvivorToken)
	first := *r.SurvivorToken
	assert.Equal(t, uint8(1), first)
	assert.Equal(t, RoundStatusRugged, r.Status)

	// A second pull must fail without recomputing the survivor.
	err := r.PullRug(8, 0) // would pick token 2 if recomputed
	require.ErrorIs(t, err, ErrRoundNotOpen)
	assert.Equal(t, first, *r.SurvivorToken)
}

func TestPullRugSeedSelection(t *testing.T) {
	tests := []struct {
		name     string
		slot     uint64
		unix     int64
		survivor uint8
	}{
		{"zero seed", 0, 0, 0},
		{"slot only", 9, 0, 3},
		{"slot plus time", 1, 7, 2},
		{"wraparound does not trap", math.MaxUint64, 5, (5 - 1) % NumTokens},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openRound(50)
			require.NoError(t, r.RecordEntry(0))
			require.NoError(t, r.PullRug(tt.slot, tt.unix))
			require.NotNil(t, r.SurvivorToken)
			assert.Equal(t, tt.survivor, *r.SurvivorToken)
		})
	}
}

// The worked example: fee 100, 3 players on token 2, 2 on token 5, survivor 2.
// Each winner gets floor(500/3)=166, 2 units of dust stay behind.
func TestWinningsFloorDivision(t *testing.T) {
	r := openRound(100)
	for _, token := range []uint8{2, 2, 2, 5, 5} {
		require.NoError(t, r.RecordEntry(token))
	}
	require.Equal(t, uint64(500), r.TotalPot)

	require.NoError(t, r.PullRug(1, 7)) // seed 8 -> token 2

	winnings, err := r.Winnings()
	require.NoError(t, err)
	assert.Equal(t, uint64(166), winnings)

	survivors, err := r.SurvivorCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), survivors)

	dust := r.TotalPot - winnings*uint64(survivors)
	assert.Equal(t, uint64(2), dust)
}

func TestWinningsBeforeRugFails(t *testing.T) {
	r := openRound(100)
	require.NoError(t, r.RecordEntry(0))

	_, err := r.Winnings()
	require.ErrorIs(t, err, ErrNoSurvivor)
}

func TestValidateClaim(t *testing.T) {
	newRuggedRound := func(t *testing.T) *GameRound {
		t.Helper()
		r := openRound(100)
		for _, token := range []uint8{2, 2, 5} {
			require.NoError(t, r.RecordEntry(token))
		}
		require.NoError(t, r.PullRug(1, 7)) // survivor token 2
		return r
	}

	t.Run("winner may claim", func(t *testing.T) {
		r := newRuggedRound(t)
		entry := &PlayerEntry{RoundID: r.ID, PlayerID: "p1", TokenIndex: 2}
		require.NoError(t, r.ValidateClaim(entry))
	})

	t.Run("claim before rug", func(t *testing.T) {
		r := openRound(100)
		require.NoError(t, r.RecordEntry(2))
		entry := &PlayerEntry{RoundID: r.ID, PlayerID: "p1", TokenIndex: 2}
		require.ErrorIs(t, r.ValidateClaim(entry), ErrRoundNotRugged)
	})

	t.Run("loser stake is forfeited", func(t *testing.T) {
		r := newRuggedRound(t)
		entry := &PlayerEntry{RoundID: r.ID, PlayerID: "p3", TokenIndex: 5}
		require.ErrorIs(t, r.ValidateClaim(entry), ErrNotASurvivor)
	})

	t.Run("repeat claim", func(t *testing.T) {
		r := newRuggedRound(t)
		entry := &PlayerEntry{RoundID: r.ID, PlayerID: "p1", TokenIndex: 2, Claimed: true}
		require.ErrorIs(t, r.ValidateClaim(entry), ErrAlreadyClaimed)
	})

	t.Run("closed round no longer pays", func(t *testing.T) {
		r := newRuggedRound(t)
		r.Status = RoundStatusClosed
		entry := &PlayerEntry{RoundID: r.ID, PlayerID: "p1", TokenIndex: 2}
		require.ErrorIs(t, r.ValidateClaim(entry), ErrRoundNotRugged)
	})
}
