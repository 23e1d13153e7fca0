package notifications

// PermissionState describes the notification authorization of a user and
// what the app should do about it.
type PermissionState struct {
	Status        string `json:"status"        enum:"unknown,not_determined,denied,authorized,provisional" doc:"Authorization status"                          example:"not_determined"`
	CanSend       bool   `json:"canSend"                                                                    doc:"Whether notifications may be delivered"         example:"false"`
	NeedsRequest  bool   `json:"needsRequest"                                                               doc:"Whether the user has never been asked"          example:"true"`
	ShouldExplain bool   `json:"shouldExplain"                                                              doc:"Whether to show an explanation before prompting" example:"true"`
}
