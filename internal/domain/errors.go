package domain

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUplineCycle          = errors.New("upline relation would form a cycle")
	ErrNotEligible          = errors.New("not eligible")
	ErrUnsupportedEventType = errors.New("unsupported event type")
	ErrParticipantSuspended = errors.New("participant suspended")
)
