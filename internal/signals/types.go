package signals

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("signal not found")

type Key string

const (
	KeyRapidContextSwitching  Key = "rapid_context_switching"
	KeyRunawayScopeExpansion  Key = "runaway_scope_expansion"
	KeyFragmentedFocusSession Key = "fragmented_focus_session"
	KeyProlongedInactivityGap Key = "prolonged_inactivity_gap"
	KeyHighTaskIntake         Key = "high_task_intake_without_completion"
)

// AllKeys is the catalog order used for display and detector runs.
var AllKeys = []Key{
	KeyRapidContextSwitching,
	KeyRunawayScopeExpansion,
	KeyFragmentedFocusSession,
	KeyProlongedInactivityGap,
	KeyHighTaskIntake,
}

func (k Key) IsValid() bool {
	_, ok := catalog[k]
	return ok
}

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

func (i Intensity) IsValid() bool {
	switch i {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return true
	}
	return false
}

type ActiveSignal struct {
	ID           string
	UserID       string
	Key          Key
	Title        string
	Description  string
	Explanation  string
	Payload      Payload
	Intensity    Intensity
	SessionID    string
	DetectedAt   time.Time
	ExpiresAt    time.Time
	DismissedAt  *time.Time
	SnoozedUntil *time.Time
}

// IsActive reports whether the signal is neither dismissed nor expired at now.
// Snoozed signals are still active.
func (s ActiveSignal) IsActive(now time.Time) bool {
	return s.DismissedAt == nil && now.Before(s.ExpiresAt)
}

func (s ActiveSignal) IsSnoozed(now time.Time) bool {
	return s.SnoozedUntil != nil && now.Before(*s.SnoozedUntil)
}

// Update carries the mutable fields of a stored signal. Nil fields are left
// untouched.
type Update struct {
	DismissedAt  *time.Time
	SnoozedUntil *time.Time
	ClearSnooze  bool
}

// Occurrence is one historical signal creation, used for trend analysis.
type Occurrence struct {
	Key        Key
	DetectedAt time.Time
}
