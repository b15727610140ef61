package calibration

import (
	"fmt"
	"time"

	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/signals"
)

type State string

const (
	StateActive       State = "active"
	StateRecentlySeen State = "recently_seen"
	StateInactive     State = "inactive"
)

type Display string

const (
	DisplayProminent Display = "prominent"
	DisplayQuiet     Display = "quiet"
	DisplayHidden    Display = "hidden"
)

type EnrichedSignal struct {
	Signal      signals.ActiveSignal
	State       State
	TimeWindow  string
	Calibration Calibration
	Definition  signals.Definition
	Display     Display
}

// EnrichOptions carries the display dampening inputs that live outside the
// calibration rows.
type EnrichOptions struct {
	Now              time.Time
	GlobalVisibility Visibility
	Preference       *returnctx.BehaviorPreference
}

// Enrich joins signals with their calibration and catalog definition. It is a
// pure function and persists nothing.
func Enrich(userID string, sigs []signals.ActiveSignal, rows map[signals.Key]Calibration, defs []signals.Definition, opts EnrichOptions) []EnrichedSignal {
	byKey := make(map[signals.Key]signals.Definition, len(defs))
	for _, def := range defs {
		byKey[def.Key] = def
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]EnrichedSignal, 0, len(sigs))
	for _, sig := range sigs {
		var cal Calibration
		if row, ok := rows[sig.Key]; ok {
			cal = row
		} else {
			cal = Default(userID, sig.Key)
		}

		age := now.Sub(sig.DetectedAt)
		out = append(out, EnrichedSignal{
			Signal:      sig,
			State:       stateForAge(age),
			TimeWindow:  describeAge(age),
			Calibration: cal,
			Definition:  byKey[sig.Key],
			Display:     ResolveDisplay(cal, sig.Intensity, opts.GlobalVisibility, opts.Preference),
		})
	}
	return out
}

func stateForAge(age time.Duration) State {
	switch {
	case age < time.Hour:
		return StateActive
	case age < 24*time.Hour:
		return StateRecentlySeen
	default:
		return StateInactive
	}
}

func describeAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return plural(int(age/time.Minute), "minute") + " ago"
	case age < 24*time.Hour:
		return plural(int(age/time.Hour), "hour") + " ago"
	default:
		return plural(int(age/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ResolveDisplay decides how a signal is surfaced. The most restrained of the
// per-signal and global visibility wins, then the return-context behavior
// preference dampens further.
func ResolveDisplay(cal Calibration, intensity signals.Intensity, global Visibility, pref *returnctx.BehaviorPreference) Display {
	strong := intensity == signals.IntensityHigh

	vis := cal.Visibility
	if global.IsValid() && global.rank() > vis.rank() {
		vis = global
	}
	if cal.Relevance == RelevanceNotNow && vis == VisibilityProminently {
		vis = VisibilityQuietly
	}
	if cal.Sensitivity == SensitivityOnlyWhenStrong && !strong {
		return DisplayHidden
	}

	var display Display
	switch vis {
	case VisibilityQuietly:
		display = DisplayQuiet
	case VisibilityHideUnlessStrong:
		if !strong {
			return DisplayHidden
		}
		display = DisplayProminent
	default:
		display = DisplayProminent
	}

	if pref == nil {
		return display
	}
	switch *pref {
	case returnctx.PreferenceQuiet:
		return DisplayQuiet
	case returnctx.PreferenceStrongOnly:
		if !strong {
			return DisplayHidden
		}
	case returnctx.PreferenceSafeMode:
		if !strong {
			return DisplayHidden
		}
		return DisplayQuiet
	}
	return display
}
