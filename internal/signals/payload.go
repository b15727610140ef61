package signals

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the context snapshot captured by a detector. Each key has exactly
// one payload type.
type Payload interface {
	SignalKey() Key
}

type ContextSwitchingPayload struct {
	DistinctContexts int      `json:"distinct_contexts"`
	ContextIDs       []string `json:"context_ids"`
	WindowMinutes    int      `json:"window_minutes"`
}

func (ContextSwitchingPayload) SignalKey() Key { return KeyRapidContextSwitching }

type ScopeExpansionPayload struct {
	SideProjects  int `json:"side_projects"`
	Offshoots     int `json:"offshoots"`
	Tracks        int `json:"tracks"`
	Total         int `json:"total"`
	WindowMinutes int `json:"window_minutes"`
}

func (ScopeExpansionPayload) SignalKey() Key { return KeyRunawayScopeExpansion }

type FragmentedFocusPayload struct {
	ShortSessions   int `json:"short_sessions"`
	ShortestSeconds int `json:"shortest_seconds"`
	WindowMinutes   int `json:"window_minutes"`
}

func (FragmentedFocusPayload) SignalKey() Key { return KeyFragmentedFocusSession }

type InactivityGapPayload struct {
	DaysSinceLastActivity int       `json:"days_since_last_activity"`
	LastActivityAt        time.Time `json:"last_activity_at"`
}

func (InactivityGapPayload) SignalKey() Key { return KeyProlongedInactivityGap }

type TaskIntakePayload struct {
	Created         int     `json:"created"`
	Completed       int     `json:"completed"`
	CompletionRatio float64 `json:"completion_ratio"`
	WindowHours     int     `json:"window_hours"`
}

func (TaskIntakePayload) SignalKey() Key { return KeyHighTaskIntake }

func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.SignalKey(), err)
	}
	return data, nil
}

func DecodePayload(key Key, data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var (
		p   Payload
		err error
	)
	switch key {
	case KeyRapidContextSwitching:
		var v ContextSwitchingPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KeyRunawayScopeExpansion:
		var v ScopeExpansionPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KeyFragmentedFocusSession:
		var v FragmentedFocusPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KeyProlongedInactivityGap:
		var v InactivityGapPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KeyHighTaskIntake:
		var v TaskIntakePayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown signal key: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", key, err)
	}
	return p, nil
}
