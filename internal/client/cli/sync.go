package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/groundwatch/internal/client/connectivity"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay pending requests once",
		Long: `Probe the server and, when it is reachable, replay every pending
request in insertion order. Use --force to replay without probing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *App) error {
				return runSync(a, force, cmd)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "replay even when the server looks offline")

	return cmd
}

func runSync(a *App, force bool, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !force && a.watcher.Check(ctx) != connectivity.StateOnline {
		_, err := fmt.Fprintln(out, "offline, nothing sent")
		return err
	}

	res, err := a.Sync(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "synced %d, failed %d\n", res.Success, res.Failed)
	return err
}
