package returnctx

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("return context not found")

type BehaviorPreference string

const (
	PreferenceNormal     BehaviorPreference = "normal"
	PreferenceQuiet      BehaviorPreference = "quiet"
	PreferenceStrongOnly BehaviorPreference = "strong_only"
	PreferenceSafeMode   BehaviorPreference = "safe_mode"
)

func (p BehaviorPreference) IsValid() bool {
	switch p {
	case PreferenceNormal, PreferenceQuiet, PreferenceStrongOnly, PreferenceSafeMode:
		return true
	}
	return false
}

type Reason string

const (
	ReasonTimeOff         Reason = "time_off"
	ReasonHealth          Reason = "health"
	ReasonOtherPriorities Reason = "other_priorities"
	ReasonLostMomentum    Reason = "lost_momentum"
	ReasonPreferNotToSay  Reason = "prefer_not_to_say"
)

var ValidReasons = map[Reason]string{
	ReasonTimeOff:         "Holiday or planned time off",
	ReasonHealth:          "Illness or recovery",
	ReasonOtherPriorities: "Busy with other things",
	ReasonLostMomentum:    "Lost momentum",
	ReasonPreferNotToSay:  "Prefer not to say",
}

func (r Reason) IsValid() bool {
	_, ok := ValidReasons[r]
	return ok
}

type ReturnContext struct {
	ID                        string
	UserID                    string
	AbsenceDetectedAt         time.Time
	LastActivityBeforeAbsence time.Time
	GapDays                   int
	Reason                    *Reason
	Note                      *string
	Preference                BehaviorPreference
	PreferenceExpiresAt       *time.Time
	BannerShown               bool
	BannerDismissed           bool
	ReorientationShown        bool
	ReorientationDismissed    bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Detection is the result of checking a user for a long inactivity gap.
type Detection struct {
	Returning          bool
	IsNew              bool
	GapDays            int
	LastActivity       time.Time
	Context            *ReturnContext
	ReorientationShown bool
}

// Update merges user supplied context. Nil fields are left untouched.
type Update struct {
	Reason     *Reason
	Note       *string
	Preference *BehaviorPreference
}

type Flag string

const (
	FlagBannerShown            Flag = "banner_shown"
	FlagBannerDismissed        Flag = "banner_dismissed"
	FlagReorientationShown     Flag = "reorientation_shown"
	FlagReorientationDismissed Flag = "reorientation_dismissed"
)
