package core

import "errors"

// Lifecycle errors. All of them are caller-correctable precondition failures;
// an operation returning one of them has not changed any state.
var (
	ErrAlreadyRecording     = errors.New("entity is already recording")
	ErrNotRecording         = errors.New("entity is not recording")
	ErrTimestampOutOfBounds = errors.New("timestamp outside cycle bounds")
	ErrNoPublishedTimeline  = errors.New("entity has no published timeline")
	ErrNotIdle              = errors.New("entity is not idle")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrCorruptTimeline      = errors.New("corrupt timeline")

	// ErrTimelineNotFound is returned by storage when no timeline is saved
	// for the requested entity.
	ErrTimelineNotFound = errors.New("timeline not found")
)
