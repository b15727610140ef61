package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/strrl/focus-signals/internal/signals"
)

type Signals struct {
	s *Store
}

func (m *Signals) ListActive(ctx context.Context, userID string, now time.Time) ([]signals.ActiveSignal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("ListActive"); err != nil {
		return nil, err
	}

	var out []signals.ActiveSignal
	for _, id := range m.s.st.signalOrder {
		sig := m.s.st.signals[id]
		if sig.UserID == userID && sig.IsActive(now) {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out, nil
}

func (m *Signals) FindActiveByKey(ctx context.Context, userID string, key signals.Key, now time.Time) (*signals.ActiveSignal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("FindActiveByKey"); err != nil {
		return nil, err
	}
	return m.findActiveLocked(userID, key, now), nil
}

func (m *Signals) findActiveLocked(userID string, key signals.Key, now time.Time) *signals.ActiveSignal {
	for i := len(m.s.st.signalOrder) - 1; i >= 0; i-- {
		sig := m.s.st.signals[m.s.st.signalOrder[i]]
		if sig.UserID == userID && sig.Key == key && sig.IsActive(now) {
			return &sig
		}
	}
	return nil
}

func (m *Signals) InsertIfAbsent(ctx context.Context, sig signals.ActiveSignal, now time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("InsertIfAbsent"); err != nil {
		return false, err
	}

	if m.findActiveLocked(sig.UserID, sig.Key, now) != nil {
		return false, nil
	}
	m.s.st.signals[sig.ID] = sig
	m.s.st.signalOrder = append(m.s.st.signalOrder, sig.ID)
	return true, nil
}

// Insert stores sig without any dedup check. Tests use it to seed history.
func (m *Signals) Insert(sig signals.ActiveSignal) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.st.signals[sig.ID] = sig
	m.s.st.signalOrder = append(m.s.st.signalOrder, sig.ID)
}

func (m *Signals) Get(ctx context.Context, userID, id string) (*signals.ActiveSignal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("Get"); err != nil {
		return nil, err
	}

	sig, ok := m.s.st.signals[id]
	if !ok || sig.UserID != userID {
		return nil, signals.ErrNotFound
	}
	return &sig, nil
}

func (m *Signals) Update(ctx context.Context, userID, id string, u signals.Update) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("Update"); err != nil {
		return err
	}

	sig, ok := m.s.st.signals[id]
	if !ok || sig.UserID != userID {
		return signals.ErrNotFound
	}
	if u.DismissedAt != nil {
		t := *u.DismissedAt
		sig.DismissedAt = &t
	}
	if u.SnoozedUntil != nil {
		t := *u.SnoozedUntil
		sig.SnoozedUntil = &t
	}
	if u.ClearSnooze {
		sig.SnoozedUntil = nil
	}
	m.s.st.signals[id] = sig
	return nil
}

func (m *Signals) ListOccurrences(ctx context.Context, userID string, since, until time.Time) ([]signals.Occurrence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("ListOccurrences"); err != nil {
		return nil, err
	}

	var out []signals.Occurrence
	for _, id := range m.s.st.signalOrder {
		sig := m.s.st.signals[id]
		if sig.UserID != userID || sig.DetectedAt.Before(since) || !sig.DetectedAt.Before(until) {
			continue
		}
		out = append(out, signals.Occurrence{Key: sig.Key, DetectedAt: sig.DetectedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out, nil
}

// All returns every stored signal of the user in insertion order.
func (m *Signals) All(userID string) []signals.ActiveSignal {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []signals.ActiveSignal
	for _, id := range m.s.st.signalOrder {
		if sig := m.s.st.signals[id]; sig.UserID == userID {
			out = append(out, sig)
		}
	}
	return out
}
