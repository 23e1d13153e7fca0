package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janisto/storytime-api/internal/app"
)

func newDispatchCmd(open opener, opts *rootOptions) *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver due reminders",
		Long: `Deliver reminders whose fire time has passed. Repeating reminders are
re-armed for the next day. Runs until interrupted unless --once is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, func(a *app.App) error {
				d := a.Dispatcher()
				if once {
					n, err := d.RunOnce(cmd.Context())
					if err != nil {
						return fmt.Errorf("dispatch: %w", err)
					}
					return render(cmd.OutOrStdout(), opts.output, map[string]int{"delivered": n})
				}

				every := interval
				if every <= 0 {
					every = a.Config.DispatchInterval
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				d.Run(ctx, every)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Deliver one batch and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (defaults to DISPATCH_INTERVAL)")
	return cmd
}
