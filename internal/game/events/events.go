// Package events defines the engine's event type and the FIFO queue that
// carries in-flight events between action execution and rule processing.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Engine-emitted event types. Game definitions are free to declare their own
// event types alongside these.
const (
	ActionPerformed = "ACTION_PERFORMED"
	PhaseEntered    = "PHASE_ENTERED"
	PhaseExited     = "PHASE_EXITED"
	TurnBegan       = "TURN_BEGAN"
	TurnEnded       = "TURN_ENDED"
	ZoneChanged     = "ZONE_CHANGED"
	ZoneShuffled    = "ZONE_SHUFFLED"
	GameEnded       = "GAME_ENDED"
)

// Event represents a state change that rules may react to. Events are never
// mutated after they are enqueued.
type Event struct {
	ID        string
	Type      string
	Data      map[string]any
	Timestamp time.Time
}

// New creates an event with a fresh ID and the current timestamp. The data
// map is owned by the event after the call.
func New(eventType string, data map[string]any) Event {
	if data == nil {
		data = make(map[string]any)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}
