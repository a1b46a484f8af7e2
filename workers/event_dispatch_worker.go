// workers/event_dispatch_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"rug-roulette-service/models"

	"gorm.io/gorm"
)

// EventDispatchClient delivers outbox rows to the external subscriber
// webhook. Delivery is at-least-once: a row is only marked delivered after a
// 2xx response, and anything else is retried on the next poll.
type EventDispatchClient struct {
	WebhookURL string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewEventDispatchClient(db *gorm.DB) *EventDispatchClient {
	webhookURL := os.Getenv("EVENT_WEBHOOK_URL")
	if webhookURL == "" {
		log.Fatal("EVENT_WEBHOOK_URL environment variable is required for event dispatch")
	}
	token := os.Getenv("ROULETTE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("ROULETTE_SERVICE_TOKEN environment variable is required for event dispatch")
	}

	return &EventDispatchClient{
		WebhookURL: webhookURL,
		Token:      token,
		DB:         db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// webhookEnvelope is the wire shape posted to the subscriber. Payload is the
// event body exactly as the outbox stored it.
type webhookEnvelope struct {
	ID        string           `json:"id"`
	RoundID   string           `json:"round_id"`
	Kind      models.EventKind `json:"kind"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

func (c *EventDispatchClient) deliver(ctx context.Context, ev models.GameEvent) error {
	body, err := json.Marshal(webhookEnvelope{
		ID:        ev.ID,
		RoundID:   ev.RoundID,
		Kind:      ev.Kind,
		Payload:   json.RawMessage(ev.Payload),
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// DispatchPending pushes undelivered events, oldest first, and returns how
// many were delivered. A failed delivery bumps the attempt counter and stops
// the batch so ordering is preserved for the round's subscribers.
func (c *EventDispatchClient) DispatchPending(ctx context.Context) (int, error) {
	var events []models.GameEvent
	if err := c.DB.Where("delivered = ?", false).
		Order("created_at ASC").
		Limit(100).
		Find(&events).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}

	delivered := 0
	for _, ev := range events {
		if err := c.deliver(ctx, ev); err != nil {
			if dbErr := c.DB.Model(&ev).Update("attempts", ev.Attempts+1).Error; dbErr != nil {
				log.Printf("❌ Failed to record attempt for event %s: %v", ev.ID, dbErr)
			}
			return delivered, fmt.Errorf("event %s (%s): %w", ev.ID, ev.Kind, err)
		}

		now := time.Now()
		if err := c.DB.Model(&ev).Updates(map[string]interface{}{
			"delivered":    true,
			"delivered_at": now,
			"attempts":     ev.Attempts + 1,
		}).Error; err != nil {
			// Marking failed after a successful POST: the subscriber may see
			// this event again next tick. At-least-once, by contract.
			return delivered, fmt.Errorf("failed to mark event %s delivered: %w", ev.ID, err)
		}
		delivered++
	}

	return delivered, nil
}

// PollEvents drives the dispatch loop until ctx is cancelled.
func PollEvents(ctx context.Context, client *EventDispatchClient, pollInterval time.Duration) {
	log.Println("Starting event dispatch polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Event dispatch polling stopped.")
			return
		case <-ticker.C:
			count, err := client.DispatchPending(ctx)
			if err != nil {
				log.Printf("❌ Event dispatch error: %v", err)
			}
			if count > 0 {
				log.Printf("📤 Delivered %d event(s) to subscriber webhook.", count)
			}
		}
	}
}
