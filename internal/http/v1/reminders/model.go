package reminders

// ReminderStatus reports whether a reminder is pending.
type ReminderStatus struct {
	Identifier string `json:"identifier" doc:"Reminder identifier"             example:"story_time_reminder"`
	Scheduled  bool   `json:"scheduled"  doc:"Whether the reminder is pending" example:"true"`
}
