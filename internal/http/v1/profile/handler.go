package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/platform/auth"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

// Register registers profile endpoints.
func Register(api huma.API, store profilesvc.Store, lc *lifecycle.Service, clock timeutil.Clock) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-profile",
		Method:        http.MethodPost,
		Path:          "/profile",
		Summary:       "Create child profile",
		Description:   "Creates the child profile for the authenticated user. Provide a date of birth, or a due date during pregnancy; the stage is derived from it.",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusCreated,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *ProfileCreateInput) (*ProfileCreateOutput, error) {
		user := auth.UserFromContext(ctx)
		now := clock.Now()
		in := input.Body

		var p domain.Profile
		switch {
		case in.DateOfBirth != nil && in.DueDate != nil:
			return nil, huma.Error422UnprocessableEntity("provide either dateOfBirth or dueDate, not both")
		case in.DateOfBirth != nil:
			if in.DateOfBirth.After(now) {
				return nil, huma.Error422UnprocessableEntity("dateOfBirth must not be in the future")
			}
			dob := in.DateOfBirth.UTC()
			p.DateOfBirth = &dob
			p.Stage = domain.StageForMonths(domain.MonthsBetween(dob, now))
		case in.DueDate != nil:
			due := in.DueDate.UTC()
			p.DueDate = &due
			p.Stage = domain.StagePregnancy
		default:
			return nil, huma.Error422UnprocessableEntity("dateOfBirth or dueDate is required")
		}

		if _, err := domain.LoadLocation(in.TimeZone); err != nil {
			return nil, huma.Error422UnprocessableEntity("unknown timeZone")
		}
		p.TimeZone = in.TimeZone
		if p.DueDatePassed(now) {
			return nil, huma.Error422UnprocessableEntity("dueDate must not be in the past")
		}
		p.ChildName = in.ChildName
		p.StoryTime = domain.DefaultStoryTime
		if in.StoryTime != nil {
			p.StoryTime = domain.TimeOfDay{Hour: in.StoryTime.Hour, Minute: in.StoryTime.Minute}
		}

		interests := profilesvc.NormalizeInterests(in.Interests)
		if len(interests) == 0 {
			allowed := domain.AllowedInterests(p.Stage)
			interests = allowed[:min(domain.MinInterests, len(allowed))]
		}
		if err := checkInterests(p.Stage, interests); err != nil {
			return nil, err
		}
		p.Interests = interests
		p.LastUpdate = now

		created, err := store.Create(ctx, user.UID, p)
		if err != nil {
			return nil, mapServiceError(err)
		}
		if created.IsPregnancy() {
			lc.SetupDueDateNotifications(ctx, user.UID)
		}
		return &ProfileCreateOutput{
			Location: "/v1/profile",
			Body:     toHTTPProfile(created),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Get current user's child profile",
		Description: "Retrieves the child profile for the authenticated user.",
		Tags:        []string{"Profile"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *ProfileGetInput) (*ProfileGetOutput, error) {
		user := auth.UserFromContext(ctx)

		p, err := store.Get(ctx, user.UID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &ProfileGetOutput{
			Body: toHTTPProfile(p),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/profile",
		Summary:     "Update current user's child profile",
		Description: "Updates the name, interests, story time or time zone. Only provided fields are updated. Interests must belong to the current stage.",
		Tags:        []string{"Profile"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *ProfileUpdateInput) (*ProfileUpdateOutput, error) {
		user := auth.UserFromContext(ctx)
		in := input.Body
		if in.ChildName == nil && in.Interests == nil && in.StoryTime == nil && in.TimeZone == nil {
			return nil, huma.Error422UnprocessableEntity("at least one field must be provided")
		}

		current, err := store.Get(ctx, user.UID)
		if err != nil {
			return nil, mapServiceError(err)
		}

		params := profilesvc.UpdateParams{ChildName: in.ChildName, TimeZone: in.TimeZone}
		if in.TimeZone != nil {
			if _, err := domain.LoadLocation(*in.TimeZone); err != nil {
				return nil, huma.Error422UnprocessableEntity("unknown timeZone")
			}
		}
		if in.Interests != nil {
			interests := profilesvc.NormalizeInterests(in.Interests)
			if err := checkInterests(current.Stage, interests); err != nil {
				return nil, err
			}
			params.Interests = interests
		}
		if in.StoryTime != nil {
			st := domain.TimeOfDay{Hour: in.StoryTime.Hour, Minute: in.StoryTime.Minute}
			params.StoryTime = &st
		}

		updated, err := store.Update(ctx, user.UID, params)
		if err != nil {
			return nil, mapServiceError(err)
		}

		if updated.StoryTime != current.StoryTime || updated.TimeZone != current.TimeZone {
			rescheduleStoryTime(ctx, lc, user.UID, updated)
		}
		return &ProfileUpdateOutput{
			Body: toHTTPProfile(updated),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-profile",
		Method:        http.MethodDelete,
		Path:          "/profile",
		Summary:       "Delete current user's child profile",
		Description:   "Permanently deletes the child profile and cancels its reminders.",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusNoContent,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *ProfileDeleteInput) (*struct{}, error) {
		user := auth.UserFromContext(ctx)

		if err := store.Delete(ctx, user.UID); err != nil {
			return nil, mapServiceError(err)
		}
		if err := lc.CancelStoryTimeReminders(ctx, user.UID); err != nil {
			applog.LogError(ctx, "failed to cancel story-time reminder", err)
		}
		if err := lc.CancelDueDateReminder(ctx, user.UID); err != nil {
			applog.LogError(ctx, "failed to cancel due-date reminder", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-auto-update",
		Method:      http.MethodGet,
		Path:        "/profile/auto-update",
		Summary:     "Check whether the profile needs an auto-update",
		Description: "Reports whether the child's stage has changed or the profile has not been refreshed for 30 days.",
		Tags:        []string{"Profile"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *AutoUpdateInput) (*AutoUpdateStatusOutput, error) {
		user := auth.UserFromContext(ctx)

		p, err := store.Get(ctx, user.UID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &AutoUpdateStatusOutput{
			Body: AutoUpdateStatus{NeedsAutoUpdate: lc.NeedsAutoUpdate(ctx, user.UID, p)},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "perform-auto-update",
		Method:      http.MethodPost,
		Path:        "/profile/auto-update",
		Summary:     "Run the profile auto-update",
		Description: "Recomputes the stage, reconciles interests and refreshes the due-date reminder. A profile that is already current is left untouched.",
		Tags:        []string{"Profile"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *AutoUpdateInput) (*AutoUpdateOutput, error) {
		user := auth.UserFromContext(ctx)

		p, err := store.Get(ctx, user.UID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		result := lc.PerformAutoUpdate(ctx, user.UID, p)
		if !result.IsSuccess {
			return nil, huma.Error500InternalServerError("profile update failed")
		}

		body := AutoUpdateResult{
			IsSuccess:   result.IsSuccess,
			HasUpdates:  result.HasUpdates,
			UpdateCount: result.UpdateCount,
		}
		if result.NewStage != nil {
			body.NewStage = string(*result.NewStage)
		}
		if result.Profile != nil {
			hp := toHTTPProfile(result.Profile)
			body.Profile = &hp
		}
		return &AutoUpdateOutput{Body: body}, nil
	})
}

// rescheduleStoryTime moves an existing story-time reminder to the new time
// or zone. Users without a reminder are left alone.
func rescheduleStoryTime(ctx context.Context, lc *lifecycle.Service, userID string, p *domain.Profile) {
	has, err := lc.HasScheduledStoryTimeReminders(ctx, userID)
	if err != nil {
		applog.LogError(ctx, "failed to check story-time reminder", err)
		return
	}
	if !has {
		return
	}
	if !lc.ScheduleStoryTimeReminder(ctx, userID, p.StoryTime, p.DisplayName()) {
		applog.LogWarn(ctx, "story-time reminder not rescheduled",
			zap.String("identifier", reminder.StoryTimeIdentifier))
	}
}

func checkInterests(stage domain.Stage, interests []string) error {
	allowed := domain.AllowedInterests(stage)
	var details []error
	for i, in := range interests {
		if !slices.Contains(allowed, in) {
			details = append(details, &huma.ErrorDetail{
				Message:  fmt.Sprintf("interest not available for stage %s", stage),
				Location: fmt.Sprintf("body.interests[%d]", i),
				Value:    in,
			})
		}
	}
	if len(details) > 0 {
		return huma.Error422UnprocessableEntity("invalid interests", details...)
	}
	return nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, profilesvc.ErrNotFound):
		return huma.Error404NotFound("profile not found")
	case errors.Is(err, profilesvc.ErrAlreadyExists):
		return huma.Error409Conflict("profile already exists")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
