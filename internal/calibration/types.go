package calibration

import (
	"errors"
	"fmt"
	"time"

	"github.com/strrl/focus-signals/internal/signals"
)

var ErrInvalidValue = errors.New("invalid calibration value")

type Sensitivity string

const (
	SensitivityEarlier        Sensitivity = "earlier"
	SensitivityAsIs           Sensitivity = "as_is"
	SensitivityOnlyWhenStrong Sensitivity = "only_when_strong"
)

func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityEarlier, SensitivityAsIs, SensitivityOnlyWhenStrong:
		return true
	}
	return false
}

type Relevance string

const (
	RelevanceVery      Relevance = "very_relevant"
	RelevanceSometimes Relevance = "sometimes_useful"
	RelevanceNotNow    Relevance = "not_useful_right_now"
)

func (r Relevance) IsValid() bool {
	switch r {
	case RelevanceVery, RelevanceSometimes, RelevanceNotNow:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityProminently      Visibility = "prominently"
	VisibilityQuietly          Visibility = "quietly"
	VisibilityHideUnlessStrong Visibility = "hide_unless_strong"
)

func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityProminently, VisibilityQuietly, VisibilityHideUnlessStrong:
		return true
	}
	return false
}

// rank orders visibilities from loudest to most restrained.
func (v Visibility) rank() int {
	switch v {
	case VisibilityQuietly:
		return 1
	case VisibilityHideUnlessStrong:
		return 2
	default:
		return 0
	}
}

const (
	DefaultSensitivity = SensitivityAsIs
	DefaultRelevance   = RelevanceSometimes
	DefaultVisibility  = VisibilityProminently
)

type Calibration struct {
	UserID      string
	Key         signals.Key
	Sensitivity Sensitivity
	Relevance   Relevance
	Visibility  Visibility
	Notes       string
	UpdatedAt   time.Time
}

// Default returns the calibration implied by an absent row.
func Default(userID string, key signals.Key) Calibration {
	return Calibration{
		UserID:      userID,
		Key:         key,
		Sensitivity: DefaultSensitivity,
		Relevance:   DefaultRelevance,
		Visibility:  DefaultVisibility,
	}
}

// Resolve returns row, or the defaults when row is nil.
func Resolve(row *Calibration, userID string, key signals.Key) Calibration {
	if row == nil {
		return Default(userID, key)
	}
	return *row
}

// Patch is a partial calibration; nil fields keep their current value.
type Patch struct {
	Sensitivity *Sensitivity `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Relevance   *Relevance   `json:"relevance,omitempty" yaml:"relevance,omitempty"`
	Visibility  *Visibility  `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Notes       *string      `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Sensitivity == nil && p.Relevance == nil && p.Visibility == nil && p.Notes == nil
}

func (p Patch) Validate() error {
	if p.Sensitivity != nil && !p.Sensitivity.IsValid() {
		return fmt.Errorf("%w: sensitivity %q", ErrInvalidValue, *p.Sensitivity)
	}
	if p.Relevance != nil && !p.Relevance.IsValid() {
		return fmt.Errorf("%w: relevance %q", ErrInvalidValue, *p.Relevance)
	}
	if p.Visibility != nil && !p.Visibility.IsValid() {
		return fmt.Errorf("%w: visibility %q", ErrInvalidValue, *p.Visibility)
	}
	return nil
}

// Apply merges p onto c.
func (p Patch) Apply(c Calibration) Calibration {
	if p.Sensitivity != nil {
		c.Sensitivity = *p.Sensitivity
	}
	if p.Relevance != nil {
		c.Relevance = *p.Relevance
	}
	if p.Visibility != nil {
		c.Visibility = *p.Visibility
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	return c
}
