package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/services"
)

// StatusReport is the JSON form of the status command.
type StatusReport struct {
	Online          bool               `json:"online"`
	PendingRequests int                `json:"pendingRequests"`
	UnsyncedSamples int                `json:"unsyncedSamples"`
	LastSyncAt      string             `json:"lastSyncAt,omitempty"`
	LastSync        *models.SyncResult `json:"lastSync,omitempty"`
	Usage           models.Usage       `json:"usage"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		asJSON bool
		probe  bool
	)

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show storage usage and sync state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(a *App) error {
				return runStatus(a, asJSON, probe, cmd)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&probe, "probe", true, "probe the server to report connectivity")

	return cmd
}

func runStatus(a *App, asJSON, probe bool, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if probe {
		a.watcher.Check(ctx)
	}

	sum, err := a.capture.PendingSummary(ctx)
	if err != nil {
		return err
	}
	usage, err := a.store.EstimateUsage(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newStatusReport(sum, usage))
	}

	state := "offline"
	if sum.Online {
		state = "online"
	}
	_, err = fmt.Fprintf(out, "server: %s\n%s\nstorage: %d records, ~%d bytes\n",
		state, sum.String(), usage.Records(), usage.ApproxBytes)
	return err
}

func newStatusReport(sum services.Summary, usage models.Usage) StatusReport {
	return StatusReport{
		Online:          sum.Online,
		PendingRequests: sum.PendingRequests,
		UnsyncedSamples: sum.UnsyncedSamples,
		LastSyncAt:      sum.LastSyncAt,
		LastSync:        sum.LastSync,
		Usage:           usage,
	}
}
