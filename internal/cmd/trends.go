package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var trendsWindow time.Duration

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Classify recent signals as new, recurring or settling",
	Long: `Compare signal occurrences in the last window with the window before it.
A signal seen in both is recurring, one seen only now is new, and one seen only
before is settling.`,
	Args: cobra.NoArgs,
	RunE: runTrends,
}

func init() {
	rootCmd.AddCommand(trendsCmd)
	trendsCmd.Flags().DurationVarP(&trendsWindow, "window", "w", 0, "Window length (default from config)")
}

func runTrends(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	trends := current.engine.GetSignalTrends(ctxOf(cmd), current.cfg.User, trendsWindow)
	if len(trends) == 0 {
		fmt.Fprintln(out, "No signal history in this window")
		return nil
	}
	for _, t := range trends {
		fmt.Fprintf(out, "%-10s %-34s now=%d before=%d last=%s\n",
			t.State, t.Label, t.InWindow, t.BeforeWindow, t.LastSeen.Format("2006-01-02"))
	}
	return nil
}
