package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/trends"
)

// Report is a point-in-time snapshot of a user's signals.
type Report struct {
	UserID      string
	GeneratedAt time.Time
	Signals     []calibration.EnrichedSignal
	Trends      []trends.Trend
	Settings    presets.Settings
	Return      *returnctx.Detection
}

type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{
		outputDir: outputDir,
	}
}

// Generate writes the report to <outputDir>/focus-signals-<user>-<date>.md
// and returns the file name.
func (g *Generator) Generate(r Report) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("focus-signals-%s-%s.md", sanitizeFilename(r.UserID), r.GeneratedAt.Format("2006-01-02"))
	filename := filepath.Join(g.outputDir, name)
	if err := os.WriteFile(filename, []byte(RenderReport(r)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return filename, nil
}

func RenderReport(r Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Focus signals: %s\n\n", r.UserID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if r.Return != nil && r.Return.Returning {
		sb.WriteString("## Welcome back\n\n")
		sb.WriteString(fmt.Sprintf("Last activity was %d days ago (%s).\n\n",
			r.Return.GapDays, r.Return.LastActivity.Format("2006-01-02")))
	}

	sb.WriteString("## Signals\n\n")
	hidden := 0
	shown := 0
	for _, s := range r.Signals {
		if s.Display == calibration.DisplayHidden {
			hidden++
			continue
		}
		shown++
		sb.WriteString(fmt.Sprintf("### %s\n\n", s.Definition.Label))
		sb.WriteString(fmt.Sprintf("- **Intensity:** %s\n", s.Signal.Intensity))
		sb.WriteString(fmt.Sprintf("- **Detected:** %s\n", s.TimeWindow))
		sb.WriteString(fmt.Sprintf("- **Display:** %s\n", s.Display))
		sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n\n", s.Signal.ID))
		if s.Definition.Description != "" {
			sb.WriteString(s.Definition.Description + "\n\n")
		}
	}
	if shown == 0 {
		sb.WriteString("Nothing to show right now.\n\n")
	}
	if hidden > 0 {
		sb.WriteString(fmt.Sprintf("_%s hidden by your calibration._\n\n", plural(hidden, "signal")))
	}

	if len(r.Trends) > 0 {
		sb.WriteString("## Trends\n\n")
		sb.WriteString("| Signal | State | This window | Before |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, t := range r.Trends {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", t.Label, t.State, t.InWindow, t.BeforeWindow))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Settings\n\n")
	sb.WriteString(fmt.Sprintf("- **Global visibility:** %s\n", r.Settings.GlobalVisibility))
	sb.WriteString(fmt.Sprintf("- **Response mode:** %s\n", r.Settings.ResponseMode))
	if r.Settings.ActivePresetID != "" {
		sb.WriteString(fmt.Sprintf("- **Active preset:** %s\n", r.Settings.ActivePresetID))
	}
	return sb.String()
}

// RenderDiff formats a preset preview.
func RenderDiff(d *presets.Diff) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Preset: %s\n\n", d.PresetName))
	if d.Warning != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", d.Warning))
	}

	sb.WriteString("## Will change\n\n")
	if len(d.WillChange) == 0 {
		sb.WriteString("Nothing; your settings already match.\n\n")
	}
	for _, c := range d.WillChange {
		target := string(c.Category)
		if c.SignalKey != "" {
			target = fmt.Sprintf("%s (%s)", c.SignalKey, c.Category)
		}
		sb.WriteString(fmt.Sprintf("- %s: %s -> %s\n", target, c.Before, c.After))
	}
	if len(d.WillChange) > 0 {
		sb.WriteString("\n")
	}

	if len(d.DoesNotDo) > 0 {
		sb.WriteString("## Does not\n\n")
		for _, s := range d.DoesNotDo {
			sb.WriteString(fmt.Sprintf("- %s\n", s))
		}
	}
	return sb.String()
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	result := strings.Trim(b.String(), "-")
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "unnamed"
	}
	return result
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
