// Package memstore is an in-memory implementation of every store interface
// of the engine. Writes inside InTx are applied to a copy that replaces the
// live state only when the callback succeeds.
package memstore

import (
	"sync"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/signals"
)

type calKey struct {
	userID string
	key    signals.Key
}

type state struct {
	signals      map[string]signals.ActiveSignal
	signalOrder  []string
	calibrations map[calKey]calibration.Calibration
	settings     map[string]presets.Settings
	applications []presets.Application
	returns      map[string]returnctx.ReturnContext
	events       []activity.Event
}

func newState() *state {
	return &state{
		signals:      make(map[string]signals.ActiveSignal),
		calibrations: make(map[calKey]calibration.Calibration),
		settings:     make(map[string]presets.Settings),
		returns:      make(map[string]returnctx.ReturnContext),
	}
}

func (s *state) clone() *state {
	c := &state{
		signals:      make(map[string]signals.ActiveSignal, len(s.signals)),
		signalOrder:  append([]string(nil), s.signalOrder...),
		calibrations: make(map[calKey]calibration.Calibration, len(s.calibrations)),
		settings:     make(map[string]presets.Settings, len(s.settings)),
		applications: append([]presets.Application(nil), s.applications...),
		returns:      make(map[string]returnctx.ReturnContext, len(s.returns)),
		events:       append([]activity.Event(nil), s.events...),
	}
	for k, v := range s.signals {
		c.signals[k] = v
	}
	for k, v := range s.calibrations {
		c.calibrations[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.returns {
		c.returns[k] = v
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

func New() *Store {
	return &Store{
		st:       newState(),
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it. Op
// names are the method names, e.g. "ListActive" or "SaveCalibration".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// fail must be called with mu held.
func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) Signals() *Signals {
	return &Signals{s: s}
}

func (s *Store) Calibrations() *Calibrations {
	return &Calibrations{s: s}
}

func (s *Store) ReturnContexts() *ReturnContexts {
	return &ReturnContexts{s: s}
}

func (s *Store) Activity() *Activity {
	return &Activity{s: s}
}
