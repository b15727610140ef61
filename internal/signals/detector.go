package signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/activity"
)

const (
	shortFocusSession = 5 * time.Minute

	intakeMaxCompleted     = 1
	intakeHighRatio        = 0.1
	intakeMediumRatio      = 0.2
	intakeMediumMinCreated = 10
)

type OutcomeStatus string

const (
	OutcomeCreated        OutcomeStatus = "created"
	OutcomeDuplicate      OutcomeStatus = "duplicate"
	OutcomeBelowThreshold OutcomeStatus = "below_threshold"
	OutcomeReadFailed     OutcomeStatus = "read_failed"
	OutcomeInactive       OutcomeStatus = "inactive"
)

type Outcome struct {
	Key       Key
	Status    OutcomeStatus
	Intensity Intensity
	Signal    *ActiveSignal
}

// evalFunc inspects activity and returns a detection, or nil when the rule's
// threshold is not met.
type evalFunc func(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error)

var evaluators = map[Key]evalFunc{
	KeyRapidContextSwitching:  evalContextSwitching,
	KeyRunawayScopeExpansion:  evalScopeExpansion,
	KeyFragmentedFocusSession: evalFragmentedFocus,
	KeyProlongedInactivityGap: evalInactivityGap,
	KeyHighTaskIntake:         evalTaskIntake,
}

type Detector struct {
	reader    activity.Reader
	lifecycle *Lifecycle
	logger    *zap.Logger
	now       func() time.Time
}

func NewDetector(reader activity.Reader, lifecycle *Lifecycle, logger *zap.Logger, now func() time.Time) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Detector{
		reader:    reader,
		lifecycle: lifecycle,
		logger:    logger,
		now:       now,
	}
}

// Evaluate runs the rule for key without touching the signal store.
func (d *Detector) Evaluate(ctx context.Context, userID string, key Key) (*Detection, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("unknown signal key: %s", key)
	}
	eval := evaluators[key]
	return eval(ctx, d.reader, userID, def.Rule, d.now().UTC())
}

// Run evaluates one rule and, when it fires, asks the lifecycle manager to
// create the signal. Activity read failures are logged and reported in the
// outcome; signal write failures are returned.
func (d *Detector) Run(ctx context.Context, userID string, key Key) (Outcome, error) {
	out := Outcome{Key: key}

	def, ok := Lookup(key)
	if !ok {
		return out, fmt.Errorf("unknown signal key: %s", key)
	}
	if !def.Active {
		out.Status = OutcomeInactive
		return out, nil
	}

	det, err := d.Evaluate(ctx, userID, key)
	if err != nil {
		d.logger.Warn("failed to read activity for detector",
			zap.String("user", userID),
			zap.String("key", string(key)),
			zap.Error(err))
		out.Status = OutcomeReadFailed
		return out, nil
	}
	if det == nil {
		out.Status = OutcomeBelowThreshold
		return out, nil
	}

	out.Intensity = det.Intensity
	sig, created, err := d.lifecycle.Create(ctx, userID, *det)
	if err != nil {
		return out, err
	}
	if !created {
		out.Status = OutcomeDuplicate
		return out, nil
	}

	out.Status = OutcomeCreated
	out.Signal = sig
	return out, nil
}

func evalContextSwitching(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error) {
	events, err := r.Query(ctx, userID, []activity.EventType{activity.EventContextOpened}, now.Add(-rule.Window))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, ev := range events {
		if ev.EntityID == "" {
			continue
		}
		if _, ok := seen[ev.EntityID]; ok {
			continue
		}
		seen[ev.EntityID] = struct{}{}
		ids = append(ids, ev.EntityID)
	}

	count := len(ids)
	if count < rule.Threshold {
		return nil, nil
	}

	minutes := int(rule.Window / time.Minute)
	return &Detection{
		Key:         KeyRapidContextSwitching,
		Intensity:   rule.Band(count),
		Title:       "Lots of switching between contexts",
		Description: fmt.Sprintf("You opened %d different contexts in the last %d minutes.", count, minutes),
		Explanation: "Moving between many projects in a short time can make it hard to settle into any one of them.",
		Payload: ContextSwitchingPayload{
			DistinctContexts: count,
			ContextIDs:       ids,
			WindowMinutes:    minutes,
		},
	}, nil
}

func evalScopeExpansion(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error) {
	events, err := r.Query(ctx, userID, activity.ScopeExpansionTypes, now.Add(-rule.Window))
	if err != nil {
		return nil, err
	}

	var p ScopeExpansionPayload
	for _, ev := range events {
		switch ev.Type {
		case activity.EventSideProjectCreated:
			p.SideProjects++
		case activity.EventOffshootCreated:
			p.Offshoots++
		case activity.EventTrackCreated:
			p.Tracks++
		}
	}
	p.Total = p.SideProjects + p.Offshoots + p.Tracks
	p.WindowMinutes = int(rule.Window / time.Minute)

	if p.Total < rule.Threshold {
		return nil, nil
	}

	return &Detection{
		Key:         KeyRunawayScopeExpansion,
		Intensity:   rule.Band(p.Total),
		Title:       "Scope is growing quickly",
		Description: fmt.Sprintf("%d new side projects, offshoots or tracks in the last %d minutes.", p.Total, p.WindowMinutes),
		Explanation: "New branches of work are appearing faster than existing ones are being closed out.",
		Payload:     p,
	}, nil
}

func evalFragmentedFocus(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error) {
	events, err := r.Query(ctx, userID, []activity.EventType{activity.EventFocusSessionEnded}, now.Add(-rule.Window))
	if err != nil {
		return nil, err
	}

	var (
		short     int
		shortest  time.Duration = -1
		sessionID string
	)
	for _, ev := range events {
		if ev.Duration >= shortFocusSession {
			continue
		}
		short++
		if shortest < 0 || ev.Duration < shortest {
			shortest = ev.Duration
		}
		sessionID = ev.SessionID
	}

	if short < rule.Threshold {
		return nil, nil
	}

	minutes := int(rule.Window / time.Minute)
	return &Detection{
		Key:         KeyFragmentedFocusSession,
		Intensity:   rule.Band(short),
		Title:       "Focus sessions are ending early",
		Description: fmt.Sprintf("%d focus sessions ended within five minutes in the last %d minutes.", short, minutes),
		Explanation: "Very short sessions often mean something keeps pulling attention away.",
		Payload: FragmentedFocusPayload{
			ShortSessions:   short,
			ShortestSeconds: int(shortest / time.Second),
			WindowMinutes:   minutes,
		},
		SessionID: sessionID,
	}, nil
}

func evalInactivityGap(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error) {
	last, ok, err := r.LastActivity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	days := WholeDays(now.Sub(last))
	if days < rule.Threshold {
		return nil, nil
	}

	return &Detection{
		Key:         KeyProlongedInactivityGap,
		Intensity:   rule.Band(days),
		Title:       "Welcome back",
		Description: fmt.Sprintf("It has been %d days since your last activity.", days),
		Explanation: "After a break it can help to look over what is in flight before picking something up.",
		Payload: InactivityGapPayload{
			DaysSinceLastActivity: days,
			LastActivityAt:        last,
		},
	}, nil
}

func evalTaskIntake(ctx context.Context, r activity.Reader, userID string, rule Rule, now time.Time) (*Detection, error) {
	events, err := r.Query(ctx, userID,
		[]activity.EventType{activity.EventTaskCreated, activity.EventTaskCompleted},
		now.Add(-rule.Window))
	if err != nil {
		return nil, err
	}

	var created, completed int
	for _, ev := range events {
		switch ev.Type {
		case activity.EventTaskCreated:
			created++
		case activity.EventTaskCompleted:
			completed++
		}
	}

	if created < rule.Threshold || completed > intakeMaxCompleted {
		return nil, nil
	}

	ratio := float64(completed) / float64(created)
	hours := int(rule.Window / time.Hour)
	return &Detection{
		Key:         KeyHighTaskIntake,
		Intensity:   intakeIntensity(ratio, created),
		Title:       "Tasks are piling up",
		Description: fmt.Sprintf("%d tasks created and %d completed in the last %d hours.", created, completed, hours),
		Explanation: "Capturing work is useful, but the list is growing much faster than it is shrinking.",
		Payload: TaskIntakePayload{
			Created:         created,
			Completed:       completed,
			CompletionRatio: math.Round(ratio*1000) / 1000,
			WindowHours:     hours,
		},
	}, nil
}

func intakeIntensity(ratio float64, created int) Intensity {
	switch {
	case ratio < intakeHighRatio:
		return IntensityHigh
	case ratio < intakeMediumRatio && created >= intakeMediumMinCreated:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// WholeDays truncates d to complete days.
func WholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
