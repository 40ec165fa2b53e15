// Package events carries profile change notifications over RabbitMQ so every
// service instance can drop cached matches and tell its feed clients.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	Exchange = "profile.events"

	TypeProfileUpdated = "profile.updated"

	// bindingKey covers every profile.* event type.
	bindingKey = "profile.#"
)

var ErrMalformedEvent = errors.New("malformed event")

// ProfileEvent is the message body published on Exchange.
type ProfileEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Namespace  string    `json:"namespace"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProfileUpdated stamps a fresh event for userID.
func NewProfileUpdated(namespace, userID string) ProfileEvent {
	return ProfileEvent{
		ID:         uuid.NewString(),
		Type:       TypeProfileUpdated,
		UserID:     userID,
		Namespace:  namespace,
		OccurredAt: time.Now().UTC(),
	}
}

func decode(body []byte) (ProfileEvent, error) {
	var ev ProfileEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ProfileEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.Type == "" || ev.UserID == "" {
		return ProfileEvent{}, fmt.Errorf("%w: missing type or user_id", ErrMalformedEvent)
	}
	return ev, nil
}
