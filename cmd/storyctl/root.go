package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janisto/storytime-api/internal/app"
)

// opener builds the App a command runs against.
type opener func(ctx context.Context) (*app.App, error)

type rootOptions struct {
	output string
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Operate story-time profiles and reminders",
		Long: `storyctl runs maintenance against the configured Firestore project and
reminder backend. Configuration is read from the environment and .env.

Available commands:
  auto-update - Reconcile a stored profile with today's date
  reminders   - Inspect or cancel a user's pending reminders
  dispatch    - Deliver due reminders`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.output {
			case "yaml", "json":
				return nil
			default:
				return fmt.Errorf("unsupported output %q (use yaml or json)", opts.output)
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "yaml", "Output format: yaml or json")

	root.AddCommand(
		newAutoUpdateCmd(open, opts),
		newRemindersCmd(open, opts),
		newDispatchCmd(open, opts),
	)
	return root
}

// withApp opens the App, runs fn and closes it.
func withApp(ctx context.Context, open opener, fn func(*app.App) error) error {
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func render(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
