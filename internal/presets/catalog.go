package presets

import (
	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/signals"
)

func ptr[T any](v T) *T { return &v }

var catalogOrder = []string{"overwhelmed", "deep_focus", "exploring", "getting_back", "quiet_week"}

var catalog = map[string]Preset{
	"overwhelmed": {
		ID:               "overwhelmed",
		Name:             "I'm feeling overwhelmed",
		ShortDescription: "Fewer, calmer nudges until things settle.",
		Description:      "Quiets the signals that tend to add pressure and switches responses to calming suggestions only.",
		Changes: Changes{
			Signals: map[signals.Key]calibration.Patch{
				signals.KeyRapidContextSwitching: {
					Visibility:  ptr(calibration.VisibilityHideUnlessStrong),
					Sensitivity: ptr(calibration.SensitivityOnlyWhenStrong),
				},
				signals.KeyRunawayScopeExpansion: {
					Visibility: ptr(calibration.VisibilityQuietly),
				},
				signals.KeyHighTaskIntake: {
					Visibility: ptr(calibration.VisibilityHideUnlessStrong),
				},
			},
			ResponseMode: ptr(ResponseCalmingOnly),
		},
		DoesNotDo: []string{
			"Does not delete or hide any of your projects or tasks",
			"Does not stop signals from being detected",
			"Does not change anything outside signal display",
		},
		Reversible: true,
	},
	"deep_focus": {
		ID:               "deep_focus",
		Name:             "Protect deep focus",
		ShortDescription: "Speak up early when focus starts to fragment.",
		Description:      "Raises focus related signals sooner and suggests a session cap so long stretches get a natural break.",
		Changes: Changes{
			Signals: map[signals.Key]calibration.Patch{
				signals.KeyFragmentedFocusSession: {
					Sensitivity: ptr(calibration.SensitivityEarlier),
					Relevance:   ptr(calibration.RelevanceVery),
					Visibility:  ptr(calibration.VisibilityProminently),
				},
				signals.KeyRapidContextSwitching: {
					Sensitivity: ptr(calibration.SensitivityEarlier),
				},
			},
			SessionCapMinutes: ptr(90),
		},
		DoesNotDo: []string{
			"Does not block you from opening other projects",
			"Does not end focus sessions automatically",
		},
		Reversible: true,
	},
	"exploring": {
		ID:               "exploring",
		Name:             "I'm exploring on purpose",
		ShortDescription: "Let ideas branch out without warnings.",
		Description:      "Treats scope growth as intentional while you brainstorm, and keeps new projects visible.",
		Changes: Changes{
			Signals: map[signals.Key]calibration.Patch{
				signals.KeyRunawayScopeExpansion: {
					Visibility: ptr(calibration.VisibilityHideUnlessStrong),
					Relevance:  ptr(calibration.RelevanceNotNow),
				},
				signals.KeyRapidContextSwitching: {
					Visibility: ptr(calibration.VisibilityQuietly),
				},
			},
			NewProjectVisibility: ptr(ProjectVisible),
		},
		DoesNotDo: []string{
			"Does not create or archive any projects",
			"Does not stop scope signals from being recorded",
		},
		Reversible: true,
	},
	"getting_back": {
		ID:               "getting_back",
		Name:             "Getting back into it",
		ShortDescription: "A gentle week after time away.",
		Description:      "Softens reminders about the gap and task backlog for a week while you find your footing again.",
		Changes: Changes{
			Signals: map[signals.Key]calibration.Patch{
				signals.KeyProlongedInactivityGap: {
					Visibility: ptr(calibration.VisibilityQuietly),
					Relevance:  ptr(calibration.RelevanceNotNow),
				},
				signals.KeyHighTaskIntake: {
					Sensitivity: ptr(calibration.SensitivityOnlyWhenStrong),
				},
			},
			ResponseMode:         ptr(ResponseCalmingOnly),
			NewProjectVisibility: ptr(ProjectMuted),
			TemporaryDays:        7,
		},
		DoesNotDo: []string{
			"Does not reschedule or close any tasks",
			"Does not hide anything permanently; it ends after seven days",
		},
		Reversible: true,
	},
	"quiet_week": {
		ID:               "quiet_week",
		Name:             "Quiet week",
		ShortDescription: "Everything shows up, just quietly.",
		Description:      "Keeps every signal but moves them out of the way for a week.",
		Changes: Changes{
			Signals: map[signals.Key]calibration.Patch{
				signals.KeyRapidContextSwitching:  {Visibility: ptr(calibration.VisibilityQuietly)},
				signals.KeyRunawayScopeExpansion:  {Visibility: ptr(calibration.VisibilityQuietly)},
				signals.KeyFragmentedFocusSession: {Visibility: ptr(calibration.VisibilityQuietly)},
				signals.KeyProlongedInactivityGap: {Visibility: ptr(calibration.VisibilityQuietly)},
				signals.KeyHighTaskIntake:         {Visibility: ptr(calibration.VisibilityQuietly)},
			},
			GlobalVisibility: ptr(calibration.VisibilityQuietly),
			ResponseMode:     ptr(ResponseMinimal),
			TemporaryDays:    7,
		},
		DoesNotDo: []string{
			"Does not dismiss any active signals",
			"Does not change how signals are detected",
		},
		Reversible: true,
	},
}

// Catalog returns the built-in presets in display order.
func Catalog() []Preset {
	out := make([]Preset, 0, len(catalogOrder))
	for _, id := range catalogOrder {
		out = append(out, catalog[id])
	}
	return out
}

func Lookup(id string) (Preset, bool) {
	p, ok := catalog[id]
	return p, ok
}
