package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-signals/internal/output"
)

var applyNotes string

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Preview, apply and revert calibration presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		active := current.engine.GetSettings(ctxOf(cmd), current.cfg.User).ActivePresetID
		for _, p := range current.engine.Presets() {
			marker := " "
			if p.ID == active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-14s %s\n", marker, p.ID, p.ShortDescription)
		}
		return nil
	},
}

var presetPreviewCmd = &cobra.Command{
	Use:   "preview <preset-id>",
	Short: "Show what applying a preset would change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diff := current.engine.PreviewPreset(ctxOf(cmd), current.cfg.User, args[0])
		if diff == nil {
			return fmt.Errorf("unknown preset: %s", args[0])
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderDiff(diff))
		return nil
	},
}

var presetApplyCmd = &cobra.Command{
	Use:   "apply <preset-id>",
	Short: "Apply a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := current.engine.ApplyPreset(ctxOf(cmd), current.cfg.User, args[0], applyNotes)
		if err != nil {
			return err
		}
		if app == nil {
			return fmt.Errorf("unknown preset: %s", args[0])
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Applied %s (%s)\n", app.PresetID, app.ID)
		if app.ExpiresAt != nil {
			fmt.Fprintf(out, "Reverts automatically after %s\n", app.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var presetRevertCmd = &cobra.Command{
	Use:   "revert <preset-id>",
	Short: "Revert the latest application of a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := current.engine.RevertPreset(ctxOf(cmd), current.cfg.User, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reverted %s (%s)\n", app.PresetID, app.ID)
		if app.EditedManually {
			fmt.Fprintln(out, "Note: signals you edited by hand after applying were reset to defaults too")
		}
		return nil
	},
}

var presetEditedCmd = &cobra.Command{
	Use:   "edited <preset-id>",
	Short: "Flag a preset application as manually edited",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.engine.MarkPresetEdited(ctxOf(cmd), current.cfg.User, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as edited\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd, presetPreviewCmd, presetApplyCmd, presetRevertCmd, presetEditedCmd)

	presetApplyCmd.Flags().StringVar(&applyNotes, "notes", "", "Notes stored with the application")
}
