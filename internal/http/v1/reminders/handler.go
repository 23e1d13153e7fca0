package reminders

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

// Register registers reminder endpoints.
func Register(api huma.API, lc *lifecycle.Service, gate *permission.Gate, profiles profilesvc.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "schedule-story-time-reminder",
		Method:      http.MethodPut,
		Path:        "/reminders/story-time",
		Summary:     "Schedule the daily story-time reminder",
		Description: "Schedules a daily reminder ten minutes before story time, replacing any earlier one, and saves the time as the profile's story time. Requires notification permission.",
		Tags:        []string{"Reminders"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *StoryTimeScheduleInput) (*ReminderStatusOutput, error) {
		user := auth.UserFromContext(ctx)

		if !gate.CanSend(ctx, user.UID) {
			return nil, huma.Error403Forbidden("notification permission not granted")
		}
		at := domain.TimeOfDay{Hour: input.Body.Hour, Minute: input.Body.Minute}
		if !lc.ScheduleStoryTimeReminder(ctx, user.UID, at, input.Body.DisplayName) {
			return nil, huma.Error503ServiceUnavailable("reminder could not be scheduled")
		}
		return &ReminderStatusOutput{
			Body: ReminderStatus{Identifier: reminder.StoryTimeIdentifier, Scheduled: true},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-story-time-reminder",
		Method:      http.MethodGet,
		Path:        "/reminders/story-time",
		Summary:     "Check the story-time reminder",
		Description: "Reports whether a story-time reminder is pending.",
		Tags:        []string{"Reminders"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *StoryTimeGetInput) (*ReminderStatusOutput, error) {
		user := auth.UserFromContext(ctx)

		has, err := lc.HasScheduledStoryTimeReminders(ctx, user.UID)
		if err != nil {
			return nil, huma.Error500InternalServerError("internal error")
		}
		return &ReminderStatusOutput{
			Body: ReminderStatus{Identifier: reminder.StoryTimeIdentifier, Scheduled: has},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-story-time-reminder",
		Method:        http.MethodDelete,
		Path:          "/reminders/story-time",
		Summary:       "Cancel the story-time reminder",
		Description:   "Cancels the story-time reminder. Succeeds when none is pending.",
		Tags:          []string{"Reminders"},
		DefaultStatus: http.StatusNoContent,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *StoryTimeDeleteInput) (*struct{}, error) {
		user := auth.UserFromContext(ctx)

		if err := lc.CancelStoryTimeReminders(ctx, user.UID); err != nil {
			return nil, huma.Error500InternalServerError("internal error")
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "setup-due-date-reminder",
		Method:      http.MethodPost,
		Path:        "/reminders/due-date",
		Summary:     "Schedule the due-date reminder",
		Description: "Schedules the due-date reminder for a pregnancy profile when notification permission is already granted. Never prompts for permission.",
		Tags:        []string{"Reminders"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *DueDateInput) (*ReminderStatusOutput, error) {
		user := auth.UserFromContext(ctx)

		p, err := profiles.Get(ctx, user.UID)
		if err != nil {
			if errors.Is(err, profilesvc.ErrNotFound) {
				return nil, huma.Error404NotFound("profile not found")
			}
			return nil, huma.Error500InternalServerError("internal error")
		}
		if !p.IsPregnancy() || p.DueDate == nil {
			return nil, huma.Error409Conflict("profile has no upcoming due date")
		}
		if lc.DueDatePassed(*p) {
			return nil, huma.Error409Conflict("due date has passed")
		}
		return &ReminderStatusOutput{
			Body: ReminderStatus{
				Identifier: reminder.DueDateIdentifier,
				Scheduled:  lc.SetupDueDateNotifications(ctx, user.UID),
			},
		}, nil
	})
}
