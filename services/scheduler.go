// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"rug-roulette-service/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRoundCloser runs the housekeeping job: once a minute, rugged rounds
// whose winners have all claimed get their dust swept to the authority and
// are moved to closed. Rounds with pending winners are skipped and retried
// on the next tick.
func (s *RoundService) StartRoundCloser() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var rounds []models.GameRound
			err := s.DB.Where("status = ?", models.RoundStatusRugged).
				Find(&rounds).Error
			if err != nil {
				log.Printf("[RoundCloser] DB error: %v", err)
				return
			}

			for _, r := range rounds {
				swept, err := s.sweepAndClose(r.ID, "")
				if err != nil {
					if errors.Is(err, models.ErrUnclaimedWinnings) {
						continue
					}
					log.Printf("[RoundCloser] Failed to close round %s: %v", r.ID, err)
					continue
				}
				log.Printf("✅ Auto-closed round %s (swept %d)", r.Slug, swept)
			}
		}),
	)
}
