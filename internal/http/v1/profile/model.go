package profile

import (
	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

// StoryTime is a wall-clock time of day.
type StoryTime struct {
	Hour   int `json:"hour"   minimum:"0" maximum:"23" doc:"Hour (0-23)"   example:"19"`
	Minute int `json:"minute" minimum:"0" maximum:"59" doc:"Minute (0-59)" example:"30"`
}

// Profile represents a child profile response.
type Profile struct {
	ID          string         `json:"id"                    doc:"Owner user ID"                        example:"user-123"`
	ChildName   string         `json:"childName,omitempty"   doc:"Child's name"                         example:"Mia"`
	Stage       string         `json:"stage"                 doc:"Developmental stage"                  example:"toddler" enum:"pregnancy,newborn,infant,toddler,preschooler"`
	DateOfBirth *timeutil.Date `json:"dateOfBirth,omitempty" doc:"Date of birth"                        example:"2023-03-01"`
	DueDate     *timeutil.Date `json:"dueDate,omitempty"     doc:"Expected due date during pregnancy"  example:"2025-08-01"`
	Interests   []string       `json:"interests"             doc:"Story interests"                      example:"[\"Animals\",\"Vehicles\",\"Music\"]"`
	StoryTime   StoryTime      `json:"storyTime"             doc:"Daily story time"`
	TimeZone    string         `json:"timeZone,omitempty"    doc:"IANA time zone"                       example:"Europe/Helsinki"`
	LastUpdate  timeutil.Time  `json:"lastUpdate"            doc:"Last reconciliation timestamp"        example:"2024-01-15T10:30:00.000Z"`
	CreatedAt   timeutil.Time  `json:"createdAt"             doc:"Creation timestamp"                   example:"2024-01-15T10:30:00.000Z"`
}

// AutoUpdateStatus tells whether the profile is due for reconciliation.
type AutoUpdateStatus struct {
	NeedsAutoUpdate bool `json:"needsAutoUpdate" doc:"Stage changed or last update is 30 or more days old" example:"true"`
}

// AutoUpdateResult is the outcome of an auto-update run.
type AutoUpdateResult struct {
	IsSuccess   bool     `json:"isSuccess"          doc:"Whether the profile was loaded and persisted" example:"true"`
	HasUpdates  bool     `json:"hasUpdates"         doc:"Whether anything changed"                     example:"true"`
	UpdateCount int      `json:"updateCount"        doc:"Number of changed fields"                     example:"3"`
	NewStage    string   `json:"newStage,omitempty" doc:"Stage after the update, if it changed"        example:"infant"`
	Profile     *Profile `json:"profile,omitempty"  doc:"Profile after the update"`
}

func toHTTPProfile(p *domain.Profile) Profile {
	out := Profile{
		ID:         p.ID,
		ChildName:  p.ChildName,
		Stage:      string(p.Stage),
		Interests:  p.Interests,
		StoryTime:  StoryTime{Hour: p.StoryTime.Hour, Minute: p.StoryTime.Minute},
		TimeZone:   p.TimeZone,
		LastUpdate: timeutil.NewTime(p.LastUpdate),
		CreatedAt:  timeutil.NewTime(p.CreatedAt),
	}
	if out.Interests == nil {
		out.Interests = []string{}
	}
	if p.DateOfBirth != nil {
		d := timeutil.NewDate(*p.DateOfBirth)
		out.DateOfBirth = &d
	}
	if p.DueDate != nil {
		d := timeutil.NewDate(*p.DueDate)
		out.DueDate = &d
	}
	return out
}
