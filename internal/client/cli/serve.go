package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the offline cache proxy with background sync",
		Long: `Serve the application through a caching proxy on the listen address.

The shell routes are cached under the configured generation, API calls fall
back to an offline response when the server is unreachable, and pending
requests are replayed whenever connectivity returns. Stops on SIGINT/SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				rootOpts.Config.ListenAddr = listen
			}
			return runServe(rootOpts, cmd)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "proxy listen address (overrides listen_addr)")

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return opts.withApp(cmd, func(a *App) error {
		ln, err := net.Listen("tcp", opts.Config.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", opts.Config.ListenAddr, err)
		}
		defer ln.Close()
		return a.Serve(ctx, ln)
	})
}
