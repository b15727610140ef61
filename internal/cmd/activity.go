package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/db"
)

var (
	recordEntity   string
	recordSession  string
	recordDuration time.Duration
	recordAt       string
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Load activity events into the store",
}

var activityImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import newline-delimited JSON activity events",
	Long: `Import activity events from a JSONL file. Each line carries user_id, type,
occurred_at and optionally id, entity_id, session_id and duration_seconds.
Lines with an unknown type are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivityImport,
}

var activityRecordCmd = &cobra.Command{
	Use:   "record <event-type>",
	Short: "Record a single activity event for the user",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivityRecord,
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityImportCmd, activityRecordCmd)

	activityRecordCmd.Flags().StringVar(&recordEntity, "entity", "", "Entity the event refers to")
	activityRecordCmd.Flags().StringVar(&recordSession, "session", "", "Session id")
	activityRecordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Duration (focus_session_ended)")
	activityRecordCmd.Flags().StringVar(&recordAt, "at", "", "RFC 3339 time of the event (default now)")
}

func runActivityImport(cmd *cobra.Command, args []string) error {
	ctx := ctxOf(cmd)
	if err := db.LoadJSON(ctx, current.db); err != nil {
		return err
	}

	n, err := activity.NewDuckDBSource(current.db).ImportJSONL(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d events from %s\n", n, args[0])
	return nil
}

func runActivityRecord(cmd *cobra.Command, args []string) error {
	at := current.now()
	if recordAt != "" {
		t, err := time.Parse(time.RFC3339, recordAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = t
	}

	ev := activity.Event{
		UserID:     current.cfg.User,
		Type:       activity.EventType(args[0]),
		EntityID:   recordEntity,
		SessionID:  recordSession,
		Duration:   recordDuration,
		OccurredAt: at,
	}
	if err := activity.NewDuckDBSource(current.db).Record(ctxOf(cmd), ev); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s at %s\n", ev.Type, at.Format(time.RFC3339))
	return nil
}
