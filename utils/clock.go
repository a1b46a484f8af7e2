// utils/clock.go
package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// SlotClock supplies the monotonic slot counter and wall-clock time that seed
// survivor selection. Both values are public and predictable, which is
// exactly why the selection they feed is weak; see GameRound.PullRug.
type SlotClock interface {
	Slot() uint64
	Unix() int64
}

// Slots tick at a fixed 400ms cadence from a genesis instant, matching the
// cadence of the chain the game settles against.
const slotDuration = 400 * time.Millisecond

// defaultGenesisUnix is 2024-01-01T00:00:00Z, used when GENESIS_UNIX is unset.
const defaultGenesisUnix = 1704067200

type EnvClock struct {
	genesis time.Time
}

// NewEnvClock builds the production clock from the GENESIS_UNIX env var.
func NewEnvClock() *EnvClock {
	genesisUnix := int64(defaultGenesisUnix)
	if raw := os.Getenv("GENESIS_UNIX"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("⚠️  Invalid GENESIS_UNIX %q, falling back to default: %v", raw, err)
		} else {
			genesisUnix = parsed
		}
	}
	return &EnvClock{genesis: time.Unix(genesisUnix, 0)}
}

func (c *EnvClock) Slot() uint64 {
	elapsed := time.Since(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / slotDuration)
}

func (c *EnvClock) Unix() int64 {
	return time.Now().Unix()
}

// FixedClock returns canned values. Test helper.
type FixedClock struct {
	SlotVal uint64
	UnixVal int64
}

func (c *FixedClock) Slot() uint64 { return c.SlotVal }
func (c *FixedClock) Unix() int64  { return c.UnixVal }
