// Package domain contains the notification event model.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Keyed payloads carry the key their events are partitioned by.
type Keyed interface {
	EventKey() string
}

// Event is one notification as delivered to sinks.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"event"`
	Key        string          `json:"key,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into an event.
func NewEvent(id, name string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	ev := Event{
		ID:         id,
		Name:       name,
		OccurredAt: at.UTC(),
		Payload:    raw,
	}
	if k, ok := payload.(Keyed); ok {
		ev.Key = k.EventKey()
	}
	return ev, nil
}
