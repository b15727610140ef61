package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/strrl/focus-signals/internal/activity"
)

// Activity satisfies activity.Reader and activity.Recorder.
type Activity struct {
	s *Store
}

func (a *Activity) Query(ctx context.Context, userID string, types []activity.EventType, since time.Time) ([]activity.Event, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.fail("Query"); err != nil {
		return nil, err
	}

	want := make(map[activity.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var out []activity.Event
	for _, ev := range a.s.st.events {
		if ev.UserID != userID || ev.OccurredAt.Before(since) {
			continue
		}
		if len(want) > 0 && !want[ev.Type] {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (a *Activity) LastActivity(ctx context.Context, userID string) (time.Time, bool, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.fail("LastActivity"); err != nil {
		return time.Time{}, false, err
	}

	var (
		last  time.Time
		found bool
	)
	for _, ev := range a.s.st.events {
		if ev.UserID == userID && (!found || ev.OccurredAt.After(last)) {
			last = ev.OccurredAt
			found = true
		}
	}
	return last, found, nil
}

func (a *Activity) Record(ctx context.Context, ev activity.Event) error {
	if !ev.Type.IsValid() {
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.fail("Record"); err != nil {
		return err
	}
	a.s.st.events = append(a.s.st.events, ev)
	return nil
}
