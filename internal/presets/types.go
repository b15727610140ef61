package presets

import (
	"errors"
	"time"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/signals"
)

var ErrNoOpenApplication = errors.New("no open application for preset")

type ResponseMode string

const (
	ResponseStandard    ResponseMode = "standard"
	ResponseCalmingOnly ResponseMode = "calming_only"
	ResponseMinimal     ResponseMode = "minimal"
)

func (m ResponseMode) IsValid() bool {
	switch m {
	case ResponseStandard, ResponseCalmingOnly, ResponseMinimal:
		return true
	}
	return false
}

type ProjectVisibility string

const (
	ProjectVisible ProjectVisibility = "visible"
	ProjectMuted   ProjectVisibility = "muted"
)

// Settings are the per-user globals a preset may touch, plus the active
// preset pointer.
type Settings struct {
	UserID               string
	ActivePresetID       string
	PresetAppliedAt      *time.Time
	GlobalVisibility     calibration.Visibility
	ResponseMode         ResponseMode
	SessionCapMinutes    *int
	NewProjectVisibility ProjectVisibility
	UpdatedAt            time.Time
}

func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:               userID,
		GlobalVisibility:     calibration.DefaultVisibility,
		ResponseMode:         ResponseStandard,
		NewProjectVisibility: ProjectVisible,
	}
}

func ResolveSettings(s *Settings, userID string) Settings {
	if s == nil {
		return DefaultSettings(userID)
	}
	return *s
}

// Changes is the declarative target of a preset. It doubles as the snapshot
// recorded on an Application.
type Changes struct {
	Signals              map[signals.Key]calibration.Patch `json:"signals,omitempty"`
	GlobalVisibility     *calibration.Visibility           `json:"global_visibility,omitempty"`
	ResponseMode         *ResponseMode                     `json:"response_mode,omitempty"`
	SessionCapMinutes    *int                              `json:"session_cap_minutes,omitempty"`
	NewProjectVisibility *ProjectVisibility                `json:"new_project_visibility,omitempty"`
	TemporaryDays        int                               `json:"temporary_days,omitempty"`
}

func (c Changes) touchesGlobals() bool {
	return c.GlobalVisibility != nil || c.ResponseMode != nil || c.SessionCapMinutes != nil || c.NewProjectVisibility != nil
}

type Preset struct {
	ID               string
	Name             string
	ShortDescription string
	Description      string
	Changes          Changes
	DoesNotDo        []string
	Reversible       bool
}

type Application struct {
	ID             string
	UserID         string
	PresetID       string
	AppliedAt      time.Time
	Changes        Changes
	ExpiresAt      *time.Time
	RevertedAt     *time.Time
	EditedManually bool
	Notes          string
}

type ChangeCategory string

const (
	CategoryGlobalVisibility     ChangeCategory = "global_visibility"
	CategoryResponseMode         ChangeCategory = "response_mode"
	CategorySessionCap           ChangeCategory = "session_cap"
	CategoryNewProjectVisibility ChangeCategory = "new_project_visibility"
	CategorySensitivity          ChangeCategory = "sensitivity"
	CategoryRelevance            ChangeCategory = "relevance"
	CategoryVisibility           ChangeCategory = "visibility"
)

type Change struct {
	Category  ChangeCategory
	SignalKey signals.Key
	Before    string
	After     string
}

type Diff struct {
	PresetID       string
	PresetName     string
	WillChange     []Change
	DoesNotDo      []string
	ActivePresetID string
	Warning        string
}

// StackPolicy decides what happens to an open application of another preset
// when a new preset is applied.
type StackPolicy string

const (
	// StackLayer leaves the prior application open and layers the new values
	// on top, only moving the active preset pointer.
	StackLayer StackPolicy = "layer"
	// StackReplace reverts every other open application first, in the same
	// transaction.
	StackReplace StackPolicy = "replace"
)

func (p StackPolicy) IsValid() bool {
	return p == StackLayer || p == StackReplace
}
