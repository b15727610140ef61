package activity

import (
	"context"
	"time"
)

type EventType string

const (
	EventContextOpened      EventType = "context_opened"
	EventSideProjectCreated EventType = "side_project_created"
	EventOffshootCreated    EventType = "offshoot_created"
	EventTrackCreated       EventType = "track_created"
	EventFocusSessionEnded  EventType = "focus_session_ended"
	EventTaskCreated        EventType = "task_created"
	EventTaskCompleted      EventType = "task_completed"
	EventSeen               EventType = "seen"
)

var ValidEventTypes = map[EventType]string{
	EventContextOpened:      "A project, track or board was opened",
	EventSideProjectCreated: "A side project was created",
	EventOffshootCreated:    "An offshoot idea was created",
	EventTrackCreated:       "A track was created",
	EventFocusSessionEnded:  "A focus session ended (duration attached)",
	EventTaskCreated:        "A task was created",
	EventTaskCompleted:      "A task was completed",
	EventSeen:               "Generic presence ping",
}

func (t EventType) IsValid() bool {
	_, ok := ValidEventTypes[t]
	return ok
}

// ScopeExpansionTypes are the side-item creations counted together by the
// scope expansion rule.
var ScopeExpansionTypes = []EventType{
	EventSideProjectCreated,
	EventOffshootCreated,
	EventTrackCreated,
}

type Event struct {
	ID         string
	UserID     string
	Type       EventType
	EntityID   string
	SessionID  string
	Duration   time.Duration
	OccurredAt time.Time
}

// Reader supplies time-windowed activity facts. An empty types slice matches
// every event type.
type Reader interface {
	Query(ctx context.Context, userID string, types []EventType, since time.Time) ([]Event, error)
	LastActivity(ctx context.Context, userID string) (time.Time, bool, error)
}

// Recorder appends activity events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
