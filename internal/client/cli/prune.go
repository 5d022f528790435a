package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete synced samples past the retention window",
		Long: `Delete samples already delivered to the server whose capture time is
older than --older-than, together with their photos. Unsynced samples are
never removed. Defaults to the configured retention.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than") {
				olderThan = rootOpts.Config.Retention
			}
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return rootOpts.withApp(cmd, func(a *App) error {
				return runPrune(a, olderThan, time.Now(), cmd)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of synced samples to delete (default: retention)")

	return cmd
}

func runPrune(a *App, olderThan time.Duration, now time.Time, cmd *cobra.Command) error {
	res, err := a.store.PruneSyncedOlderThan(cmd.Context(), now.Add(-olderThan))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d samples, %d photos\n", res.Samples, res.Photos)
	return err
}
