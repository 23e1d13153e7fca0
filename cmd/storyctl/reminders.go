package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janisto/storytime-api/internal/app"
	"github.com/janisto/storytime-api/internal/reminder"
)

var reminderKinds = map[string][]string{
	"story-time": {reminder.StoryTimeIdentifier},
	"due-date":   {reminder.DueDateIdentifier},
	"all":        {reminder.StoryTimeIdentifier, reminder.DueDateIdentifier},
}

type pendingView struct {
	UserID  string   `json:"userId"  yaml:"userId"`
	Pending []string `json:"pending" yaml:"pending"`
}

func newRemindersCmd(open opener, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect or cancel pending reminders",
	}

	status := &cobra.Command{
		Use:   "status USER_ID",
		Short: "List pending reminder identifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, func(a *app.App) error {
				ids, err := a.Reminders.Pending(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("list pending reminders: %w", err)
				}
				if ids == nil {
					ids = []string{}
				}
				return render(cmd.OutOrStdout(), opts.output, pendingView{UserID: args[0], Pending: ids})
			})
		},
	}

	var kind string
	cancel := &cobra.Command{
		Use:   "cancel USER_ID",
		Short: "Cancel pending reminders",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if _, ok := reminderKinds[kind]; !ok {
				return fmt.Errorf("unknown reminder kind %q (use story-time, due-date or all)", kind)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, func(a *app.App) error {
				for _, id := range reminderKinds[kind] {
					if err := a.Scheduler.Cancel(cmd.Context(), args[0], id); err != nil {
						return fmt.Errorf("cancel %s: %w", id, err)
					}
				}
				ids, err := a.Reminders.Pending(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("list pending reminders: %w", err)
				}
				if ids == nil {
					ids = []string{}
				}
				return render(cmd.OutOrStdout(), opts.output, pendingView{UserID: args[0], Pending: ids})
			})
		},
	}
	cancel.Flags().StringVar(&kind, "kind", "all", "Reminder kind: story-time, due-date or all")

	cmd.AddCommand(status, cancel)
	return cmd
}
