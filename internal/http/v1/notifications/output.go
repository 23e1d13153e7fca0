package notifications

// PermissionOutput wraps a PermissionState body.
type PermissionOutput struct {
	Body PermissionState
}
