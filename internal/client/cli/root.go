package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/groundwatch/internal/client/config"
	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

// RootOptions carries the state resolved by the root command before any
// subcommand runs.
type RootOptions struct {
	Config *config.Config
	Log    logging.Logger
}

// NewRootCommand creates the root command for the groundwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "groundwatch",
		Short: "groundwatch - offline-first field capture and sync",
		Long: `Capture groundwater samples in the field and deliver them to the
monitoring server once connectivity returns.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString(config.FlagConfig)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	o.Config = cfg
	o.Log = log
	return nil
}

// withApp builds an App for the duration of fn.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(a *App) error) (err error) {
	a, err := NewApp(cmd.Context(), o.Config, o.Log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
