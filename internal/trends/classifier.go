package trends

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/signals"
)

type State string

const (
	StateRecurring State = "recurring"
	StateNew       State = "new"
	StateSettling  State = "settling"
)

var stateOrder = map[State]int{
	StateRecurring: 0,
	StateNew:       1,
	StateSettling:  2,
}

type Trend struct {
	Key          signals.Key
	Label        string
	State        State
	InWindow     int
	BeforeWindow int
	LastSeen     time.Time
}

// OccurrenceSource lists signal creations in [since, until).
type OccurrenceSource interface {
	ListOccurrences(ctx context.Context, userID string, since, until time.Time) ([]signals.Occurrence, error)
}

type Config struct {
	Window           time.Duration
	MinSettlingPrior int
}

func DefaultConfig() Config {
	return Config{
		Window:           7 * 24 * time.Hour,
		MinSettlingPrior: 1,
	}
}

type Classifier struct {
	config Config
	source OccurrenceSource
	logger *zap.Logger
	now    func() time.Time
}

func NewClassifier(cfg Config, source OccurrenceSource, logger *zap.Logger, now func() time.Time) *Classifier {
	defaults := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.MinSettlingPrior <= 0 {
		cfg.MinSettlingPrior = defaults.MinSettlingPrior
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Classifier{config: cfg, source: source, logger: logger, now: now}
}

// Classify buckets the user's signal history over window (the configured
// default when zero) and the equally long window before it. Store failures
// yield an empty result.
func (c *Classifier) Classify(ctx context.Context, userID string, window time.Duration) []Trend {
	if window <= 0 {
		window = c.config.Window
	}

	now := c.now().UTC()
	windowStart := now.Add(-window)
	beforeStart := windowStart.Add(-window)

	// The upper bound is exclusive, so nudge it to include occurrences at now.
	occurrences, err := c.source.ListOccurrences(ctx, userID, beforeStart, now.Add(time.Nanosecond))
	if err != nil {
		c.logger.Warn("failed to list signal occurrences",
			zap.String("user", userID),
			zap.Error(err))
		return nil
	}

	grouped := make(map[signals.Key]*Trend)
	for _, occ := range occurrences {
		t, ok := grouped[occ.Key]
		if !ok {
			t = &Trend{Key: occ.Key}
			if def, found := signals.Lookup(occ.Key); found {
				t.Label = def.Label
			}
			grouped[occ.Key] = t
		}

		if occ.DetectedAt.Before(windowStart) {
			t.BeforeWindow++
		} else {
			t.InWindow++
		}
		if occ.DetectedAt.After(t.LastSeen) {
			t.LastSeen = occ.DetectedAt
		}
	}

	var trends []Trend
	for _, t := range grouped {
		t.State = ClassifyCounts(t.InWindow, t.BeforeWindow)
		if t.State == StateSettling && t.BeforeWindow < c.config.MinSettlingPrior {
			continue
		}
		trends = append(trends, *t)
	}

	sortTrends(trends)
	return trends
}

// ClassifyCounts maps in-window and before-window counts to a trend state.
func ClassifyCounts(inWindow, beforeWindow int) State {
	switch {
	case inWindow == 0 && beforeWindow > 0:
		return StateSettling
	case inWindow == 1 && beforeWindow == 0:
		return StateNew
	case inWindow > 1:
		return StateRecurring
	default:
		return StateNew
	}
}

func sortTrends(trends []Trend) {
	sort.Slice(trends, func(i, j int) bool {
		a, b := trends[i], trends[j]
		if stateOrder[a.State] != stateOrder[b.State] {
			return stateOrder[a.State] < stateOrder[b.State]
		}
		if a.InWindow != b.InWindow {
			return a.InWindow > b.InWindow
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Key < b.Key
	})
}
