package journal

import (
	"time"

	"github.com/google/uuid"
)

// Event is one dispatched tool call and its outcome.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Tool       string    `json:"tool"`
	Title      string    `json:"title,omitempty"`
	Target     string    `json:"target,omitempty"`
	OK         bool      `json:"ok"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	Sections   int       `json:"sections,omitempty"`
	Files      int       `json:"files,omitempty"`
	Blocks     int       `json:"blocks,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Recorder persists events. Load returns them in append order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Append(event Event) error
	Load() ([]Event, error)
}

// stamp fills the ID and timestamp of an event that has none.
func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// Nop discards events.
type Nop struct{}

func (Nop) Append(Event) error     { return nil }
func (Nop) Load() ([]Event, error) { return nil, nil }
