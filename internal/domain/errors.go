package domain

import "errors"

// Domain errors
var (
	ErrInvalidStage     = errors.New("invalid stage")
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidTimeZone  = errors.New("invalid time zone")
)
