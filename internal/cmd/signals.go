package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/signals"
)

var (
	listSnoozed    bool
	listAll        bool
	snoozeFor      time.Duration
	snoozeUntil    string
	calSensitivity string
	calRelevance   string
	calVisibility  string
	calNotes       string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run every detector for the user",
	Long: `Run all five detectors against recent activity and create any signal whose
threshold is met. Signals already active for the same rule are not duplicated.`,
	Args: cobra.NoArgs,
	RunE: runCompute,
}

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List and manage active signals",
}

var signalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active signals with their calibration",
	Args:  cobra.NoArgs,
	RunE:  runSignalsList,
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss <signal-id>",
	Short: "Dismiss a signal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.engine.DismissSignal(ctxOf(cmd), current.cfg.User, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %s\n", args[0])
		return nil
	},
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze <signal-id>",
	Short: "Hide a signal until a later time",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnooze,
}

var unsnoozeCmd = &cobra.Command{
	Use:   "unsnooze <signal-id>",
	Short: "Clear a signal's snooze",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.engine.UnsnoozeSignal(ctxOf(cmd), current.cfg.User, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unsnoozed %s\n", args[0])
		return nil
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <signal-key>",
	Short: "Tune how a signal is surfaced",
	Long: `Update the calibration of one signal kind. Only the flags you pass are
changed. Calibration never alters detection.

  --sensitivity  earlier | as_is | only_when_strong
  --relevance    very_relevant | sometimes_useful | not_useful_right_now
  --visibility   prominently | quietly | hide_unless_strong`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(calibrateCmd)
	signalsCmd.AddCommand(signalsListCmd, dismissCmd, snoozeCmd, unsnoozeCmd)

	signalsListCmd.Flags().BoolVar(&listSnoozed, "snoozed", false, "List snoozed signals instead")
	signalsListCmd.Flags().BoolVar(&listAll, "all", false, "Include signals hidden by calibration")

	snoozeCmd.Flags().DurationVar(&snoozeFor, "for", 24*time.Hour, "Snooze duration")
	snoozeCmd.Flags().StringVar(&snoozeUntil, "until", "", "Snooze until an RFC 3339 time (overrides --for)")

	calibrateCmd.Flags().StringVar(&calSensitivity, "sensitivity", "", "Sensitivity")
	calibrateCmd.Flags().StringVar(&calRelevance, "relevance", "", "Relevance")
	calibrateCmd.Flags().StringVar(&calVisibility, "visibility", "", "Visibility")
	calibrateCmd.Flags().StringVar(&calNotes, "notes", "", "Free-form notes")
}

func runCompute(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	outcomes, err := current.engine.ComputeSignalsForUser(ctxOf(cmd), current.cfg.User)
	if err != nil {
		return fmt.Errorf("failed to compute signals: %w", err)
	}

	created := 0
	for _, o := range outcomes {
		line := fmt.Sprintf("  %-28s %s", o.Key, o.Status)
		if o.Intensity != "" {
			line += fmt.Sprintf(" (%s)", o.Intensity)
		}
		fmt.Fprintln(out, line)
		if o.Status == signals.OutcomeCreated {
			created++
		}
	}
	fmt.Fprintf(out, "Created %d signals\n", created)
	return nil
}

func runSignalsList(cmd *cobra.Command, args []string) error {
	ctx := ctxOf(cmd)
	out := cmd.OutOrStdout()
	user := current.cfg.User
	now := current.now()

	if listSnoozed {
		snoozed := current.engine.GetSnoozedSignals(ctx, user)
		if len(snoozed) == 0 {
			fmt.Fprintln(out, "No snoozed signals")
			return nil
		}
		for _, s := range snoozed {
			fmt.Fprintf(out, "%s  %-28s %-6s until %s\n", s.ID, s.Key, s.Intensity, s.SnoozedUntil.Format(time.RFC3339))
		}
		return nil
	}

	enriched := current.engine.EnrichSignalsWithCalibration(ctx, user, current.engine.GetActiveSignals(ctx, user))
	shown := 0
	for _, s := range enriched {
		if s.Display == calibration.DisplayHidden && !listAll {
			continue
		}
		shown++
		fmt.Fprintf(out, "%s  %-28s %-6s %-9s %s\n", s.Signal.ID, s.Signal.Key, s.Signal.Intensity, s.Display, s.TimeWindow)
		fmt.Fprintf(out, "    %s\n", s.Signal.Title)
	}
	if shown == 0 {
		fmt.Fprintf(out, "No active signals as of %s\n", now.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSnooze(cmd *cobra.Command, args []string) error {
	until := current.now().Add(snoozeFor)
	if snoozeUntil != "" {
		t, err := time.Parse(time.RFC3339, snoozeUntil)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		until = t
	}

	if err := current.engine.SnoozeSignal(ctxOf(cmd), current.cfg.User, args[0], until); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snoozed %s until %s\n", args[0], until.Format(time.RFC3339))
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	key := signals.Key(args[0])
	if !key.IsValid() {
		return fmt.Errorf("unknown signal key: %s", key)
	}

	var patch calibration.Patch
	flags := cmd.Flags()
	if flags.Changed("sensitivity") {
		v := calibration.Sensitivity(calSensitivity)
		patch.Sensitivity = &v
	}
	if flags.Changed("relevance") {
		v := calibration.Relevance(calRelevance)
		patch.Relevance = &v
	}
	if flags.Changed("visibility") {
		v := calibration.Visibility(calVisibility)
		patch.Visibility = &v
	}
	if flags.Changed("notes") {
		patch.Notes = &calNotes
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to change: pass at least one of --sensitivity, --relevance, --visibility, --notes")
	}

	cal, err := current.engine.UpsertSignalCalibration(ctxOf(cmd), current.cfg.User, key, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: sensitivity=%s relevance=%s visibility=%s\n",
		cal.Key, cal.Sensitivity, cal.Relevance, cal.Visibility)
	return nil
}
