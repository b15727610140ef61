package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-signals/internal/output"
)

var (
	reportDir    string
	reportStdout bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown report of signals, trends and settings",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportDir, "out", "o", ".focus-signals", "Directory for the report file")
	reportCmd.Flags().BoolVar(&reportStdout, "stdout", false, "Print the report instead of writing a file")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := ctxOf(cmd)
	e := current.engine
	user := current.cfg.User

	det := e.DetectReturn(ctx, user)
	r := output.Report{
		UserID:      user,
		GeneratedAt: current.now(),
		Signals:     e.EnrichSignalsWithCalibration(ctx, user, e.GetActiveSignals(ctx, user)),
		Trends:      e.GetSignalTrends(ctx, user, 0),
		Settings:    e.GetSettings(ctx, user),
		Return:      &det,
	}

	if reportStdout {
		fmt.Fprint(cmd.OutOrStdout(), output.RenderReport(r))
		return nil
	}

	filename, err := output.NewGenerator(reportDir).Generate(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
	return nil
}
