// models/event.go
package models

import "time"

type EventKind string

const (
	EventRoundCreated    EventKind = "round_created"
	EventPlayerEntered   EventKind = "player_entered"
	EventRugPulled       EventKind = "rug_pulled"
	EventWinningsClaimed EventKind = "winnings_claimed"
	EventRoundClosed     EventKind = "round_closed"
)

// GameEvent is a transactional-outbox row. It is inserted in the same
// transaction as the state change it describes, then delivered at-least-once
// by the dispatch worker (and streamed live over SSE). Payload is the
// marshaled event body.
type GameEvent struct {
	ID      string    `json:"id" gorm:"primaryKey;type:uuid"`
	RoundID string    `json:"round_id" gorm:"index;not null"`
	Kind    EventKind `json:"kind" gorm:"type:varchar(32);not null"`
	Payload string    `json:"payload" gorm:"type:text;not null"`

	Delivered   bool       `json:"delivered" gorm:"not null;default:false;index"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
