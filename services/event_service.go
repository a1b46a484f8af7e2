// services/event_service.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rug-roulette-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// recordEvent writes an outbox row inside the caller's transaction, so the
// event commits or rolls back together with the state change it describes.
func recordEvent(tx *gorm.DB, roundID string, kind models.EventKind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return tx.Create(&models.GameEvent{
		ID:      uuid.NewString(),
		RoundID: roundID,
		Kind:    kind,
		Payload: string(raw),
	}).Error
}

// ListRoundEvents returns a round's events, oldest first.
// GET /rounds/:id/events
func (s *EventService) ListRoundEvents(c *fiber.Ctx) error {
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	var events []models.GameEvent
	if err := s.DB.Where("round_id = ?", roundID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		log.Printf("DB error fetching events for round %s: %v", roundID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch events"})
	}

	return c.JSON(events)
}

// StreamRoundEventsSSE streams a round's events live over SSE, replaying
// nothing: the cursor starts at the newest existing event.
func (s *EventService) StreamRoundEventsSSE(c *fiber.Ctx) error {
	roundID := c.Params("id")
	if _, err := uuid.Parse(roundID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round ID"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		var latest models.GameEvent
		if err := s.DB.
			Where("round_id = ?", roundID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for round %s: %v", roundID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newEvents []models.GameEvent

				err := s.DB.
					Where("round_id = ? AND created_at > ?", roundID, lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&newEvents).Error
				if err != nil {
					log.Printf("SSE query error for round %s: %v", roundID, err)
					continue
				}

				if len(newEvents) == 0 {
					continue
				}

				lastMaxCreatedAt = newEvents[len(newEvents)-1].CreatedAt

				for _, ev := range newEvents {
					fmt.Fprintf(w,
						"event: %s\ndata: %s\n\n",
						ev.Kind, ev.Payload,
					)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
