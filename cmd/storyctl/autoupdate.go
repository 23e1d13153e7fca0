package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janisto/storytime-api/internal/app"
)

type autoUpdateView struct {
	UserID      string   `json:"userId" yaml:"userId"`
	IsSuccess   bool     `json:"isSuccess" yaml:"isSuccess"`
	HasUpdates  bool     `json:"hasUpdates" yaml:"hasUpdates"`
	UpdateCount int      `json:"updateCount" yaml:"updateCount"`
	NewStage    string   `json:"newStage,omitempty" yaml:"newStage,omitempty"`
	Stage       string   `json:"stage,omitempty" yaml:"stage,omitempty"`
	Interests   []string `json:"interests,omitempty" yaml:"interests,omitempty"`
}

func newAutoUpdateCmd(open opener, opts *rootOptions) *cobra.Command {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "auto-update USER_ID...",
		Short: "Reconcile stored profiles with today's date",
		Long: `Reconcile each profile's stage and interests with today's date and
persist the result. With --check only reports whether an update is due.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, func(a *app.App) error {
				failed := 0
				for _, uid := range args {
					if checkOnly {
						needs := a.Lifecycle.NeedsAutoUpdate(cmd.Context(), uid, nil)
						if err := render(cmd.OutOrStdout(), opts.output, map[string]any{
							"userId": uid, "needsAutoUpdate": needs,
						}); err != nil {
							return err
						}
						continue
					}

					res := a.Lifecycle.PerformAutoUpdate(cmd.Context(), uid, nil)
					view := autoUpdateView{
						UserID:      uid,
						IsSuccess:   res.IsSuccess,
						HasUpdates:  res.HasUpdates,
						UpdateCount: res.UpdateCount,
					}
					if res.NewStage != nil {
						view.NewStage = string(*res.NewStage)
					}
					if res.Profile != nil {
						view.Stage = string(res.Profile.Stage)
						view.Interests = res.Profile.Interests
					}
					if !res.IsSuccess {
						failed++
					}
					if err := render(cmd.OutOrStdout(), opts.output, view); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d profiles failed to update", failed, len(args))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is due")
	return cmd
}
