package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-signals/internal/returnctx"
)

var (
	returnCreate     bool
	returnReason     string
	returnNote       string
	returnPreference string
	returnFlags      []string
)

var returnCmd = &cobra.Command{
	Use:   "return",
	Short: "Handle coming back after a long break",
}

var returnDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Check whether the user is returning from a long gap",
	Args:  cobra.NoArgs,
	RunE:  runReturnDetect,
}

var returnUpdateCmd = &cobra.Command{
	Use:   "update <context-id>",
	Short: "Record why you were away and how signals should behave",
	Long: `Update a return context. A quiet or strong_only preference lasts seven
days; normal or safe_mode clears the expiry.

  --reason      time_off | health | other_priorities | lost_momentum | prefer_not_to_say
  --preference  normal | quiet | strong_only | safe_mode
  --flag        banner_shown | banner_dismissed | reorientation_shown | reorientation_dismissed`,
	Args: cobra.ExactArgs(1),
	RunE: runReturnUpdate,
}

func init() {
	rootCmd.AddCommand(returnCmd)
	returnCmd.AddCommand(returnDetectCmd, returnUpdateCmd)

	returnDetectCmd.Flags().BoolVar(&returnCreate, "create", false, "Create a return context when a new gap is found")

	returnUpdateCmd.Flags().StringVar(&returnReason, "reason", "", "Why you were away")
	returnUpdateCmd.Flags().StringVar(&returnNote, "note", "", "Free-form note")
	returnUpdateCmd.Flags().StringVar(&returnPreference, "preference", "", "Signal behavior while settling back in")
	returnUpdateCmd.Flags().StringSliceVar(&returnFlags, "flag", nil, "UI flags to set (repeatable)")
}

func runReturnDetect(cmd *cobra.Command, args []string) error {
	ctx := ctxOf(cmd)
	out := cmd.OutOrStdout()
	user := current.cfg.User

	det := current.engine.DetectReturn(ctx, user)
	if !det.Returning {
		fmt.Fprintf(out, "Not returning (last gap %d days)\n", det.GapDays)
		return nil
	}

	fmt.Fprintf(out, "Returning after %d days (last activity %s)\n", det.GapDays, det.LastActivity.Format("2006-01-02"))
	if det.Context != nil {
		fmt.Fprintf(out, "Return context %s (preference %s)\n", det.Context.ID, det.Context.Preference)
		return nil
	}
	if !returnCreate {
		fmt.Fprintln(out, "New gap; rerun with --create to record it")
		return nil
	}

	rc, err := current.engine.CreateReturnContext(ctx, user, det)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created return context %s\n", rc.ID)
	return nil
}

func runReturnUpdate(cmd *cobra.Command, args []string) error {
	ctx := ctxOf(cmd)
	out := cmd.OutOrStdout()
	user := current.cfg.User
	contextID := args[0]

	var in returnctx.Update
	flags := cmd.Flags()
	if flags.Changed("reason") {
		r := returnctx.Reason(returnReason)
		in.Reason = &r
	}
	if flags.Changed("note") {
		in.Note = &returnNote
	}
	if flags.Changed("preference") {
		p := returnctx.BehaviorPreference(returnPreference)
		in.Preference = &p
	}

	if in.Reason != nil || in.Note != nil || in.Preference != nil {
		rc, err := current.engine.UpdateReturnContext(ctx, user, contextID, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated %s (preference %s)\n", rc.ID, rc.Preference)
		if rc.PreferenceExpiresAt != nil {
			fmt.Fprintf(out, "Preference expires %s\n", rc.PreferenceExpiresAt.Format("2006-01-02 15:04"))
		}
	}

	for _, f := range returnFlags {
		if err := current.engine.SetReturnFlag(ctx, user, contextID, returnctx.Flag(f)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Set %s\n", f)
	}
	return nil
}
