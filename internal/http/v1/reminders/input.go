package reminders

// StoryTimeScheduleInput for PUT /reminders/story-time
type StoryTimeScheduleInput struct {
	Body struct {
		Hour        int    `json:"hour"                  minimum:"0" maximum:"23" required:"true" doc:"Story time hour"                       example:"19"`
		Minute      int    `json:"minute"                minimum:"0" maximum:"59" required:"true" doc:"Story time minute"                     example:"30"`
		DisplayName string `json:"displayName,omitempty" maxLength:"100"                          doc:"Name used in the notification text"    example:"Mia"`
	}
}

// StoryTimeGetInput for GET /reminders/story-time (no body needed)
type StoryTimeGetInput struct{}

// StoryTimeDeleteInput for DELETE /reminders/story-time (no body needed)
type StoryTimeDeleteInput struct{}

// DueDateInput for POST /reminders/due-date (no body needed)
type DueDateInput struct{}
