package reminders

// ReminderStatusOutput wraps a ReminderStatus body.
type ReminderStatusOutput struct {
	Body ReminderStatus
}
