package signals

import "time"

// Rule holds the thresholds of one detector. Counts at or above HighAt are
// high intensity, at or above MediumAt medium, otherwise low.
type Rule struct {
	Window    time.Duration
	Threshold int
	MediumAt  int
	HighAt    int
	Expiry    time.Duration
}

func (r Rule) Band(count int) Intensity {
	switch {
	case count >= r.HighAt:
		return IntensityHigh
	case count >= r.MediumAt:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

type Definition struct {
	Key          Key
	Label        string
	Description  string
	Rule         Rule
	Active       bool
	DisplayOrder int
}

var catalog = map[Key]Definition{
	KeyRapidContextSwitching: {
		Key:          KeyRapidContextSwitching,
		Label:        "Rapid context switching",
		Description:  "Many different projects or boards opened in a short stretch of time.",
		Rule:         Rule{Window: 20 * time.Minute, Threshold: 5, MediumAt: 7, HighAt: 10, Expiry: 60 * time.Minute},
		Active:       true,
		DisplayOrder: 1,
	},
	KeyRunawayScopeExpansion: {
		Key:          KeyRunawayScopeExpansion,
		Label:        "Runaway scope expansion",
		Description:  "Side projects, offshoots and tracks piling up faster than usual.",
		Rule:         Rule{Window: 60 * time.Minute, Threshold: 5, MediumAt: 10, HighAt: 15, Expiry: 120 * time.Minute},
		Active:       true,
		DisplayOrder: 2,
	},
	KeyFragmentedFocusSession: {
		Key:          KeyFragmentedFocusSession,
		Label:        "Fragmented focus sessions",
		Description:  "Focus sessions ending after only a few minutes.",
		Rule:         Rule{Window: 30 * time.Minute, Threshold: 1, MediumAt: 2, HighAt: 3, Expiry: 60 * time.Minute},
		Active:       true,
		DisplayOrder: 3,
	},
	KeyProlongedInactivityGap: {
		Key:          KeyProlongedInactivityGap,
		Label:        "Prolonged inactivity gap",
		Description:  "Several days have passed since the last recorded activity.",
		Rule:         Rule{Threshold: 3, MediumAt: 7, HighAt: 14, Expiry: 1440 * time.Minute},
		Active:       true,
		DisplayOrder: 4,
	},
	KeyHighTaskIntake: {
		Key:          KeyHighTaskIntake,
		Label:        "High task intake without completion",
		Description:  "Lots of new tasks created while very few get finished.",
		Rule:         Rule{Window: 24 * time.Hour, Threshold: 5, Expiry: 240 * time.Minute},
		Active:       true,
		DisplayOrder: 5,
	},
}

// Definitions returns the static catalog in display order.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(AllKeys))
	for _, k := range AllKeys {
		defs = append(defs, catalog[k])
	}
	return defs
}

func Lookup(key Key) (Definition, bool) {
	def, ok := catalog[key]
	return def, ok
}
