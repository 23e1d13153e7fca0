package profile

import "github.com/janisto/storytime-api/internal/platform/timeutil"

// ProfileCreateInput for POST /profile. The stage is derived from the dates.
type ProfileCreateInput struct {
	Body struct {
		ChildName   string         `json:"childName,omitempty"   maxLength:"100"                doc:"Child's name"                      example:"Mia"`
		DateOfBirth *timeutil.Date `json:"dateOfBirth,omitempty"                              doc:"Date of birth (born children)"     example:"2023-03-01"`
		DueDate     *timeutil.Date `json:"dueDate,omitempty"                                  doc:"Due date (pregnancy)"              example:"2025-08-01"`
		Interests   []string       `json:"interests,omitempty"   maxItems:"20"                  doc:"Story interests for the stage"     example:"[\"Animals\"]"`
		StoryTime   *StoryTime     `json:"storyTime,omitempty"                                  doc:"Daily story time (default 19:30)"`
		TimeZone    string         `json:"timeZone,omitempty"    maxLength:"64"                 doc:"IANA time zone (default UTC)"      example:"Europe/Helsinki"`
	}
}

// ProfileGetInput for GET /profile (no body needed)
type ProfileGetInput struct{}

// ProfileUpdateInput for PATCH /profile
type ProfileUpdateInput struct {
	Body struct {
		ChildName *string    `json:"childName,omitempty" maxLength:"100" doc:"Child's name"                 example:"Mia"`
		Interests []string   `json:"interests,omitempty" maxItems:"20"   doc:"Story interests for the stage" example:"[\"Animals\"]"`
		StoryTime *StoryTime `json:"storyTime,omitempty"                 doc:"Daily story time"`
		TimeZone  *string    `json:"timeZone,omitempty"  maxLength:"64"  doc:"IANA time zone"                example:"Europe/Helsinki"`
	}
}

// ProfileDeleteInput for DELETE /profile (no body needed)
type ProfileDeleteInput struct{}

// AutoUpdateInput for GET and POST /profile/auto-update (no body needed)
type AutoUpdateInput struct{}
