package notifications

// PermissionGetInput for GET /notifications/permission
type PermissionGetInput struct {
	ShowForDenied bool `query:"showForDenied" doc:"Explain again after a prior denial"`
}

// PermissionReportInput for PUT /notifications/permission
type PermissionReportInput struct {
	Body struct {
		Status string `json:"status" enum:"not_determined,denied,authorized,provisional" required:"true" doc:"Status observed on the device" example:"authorized"`
	}
}

// PermissionRequestInput for POST /notifications/permission/request (no body needed)
type PermissionRequestInput struct{}
