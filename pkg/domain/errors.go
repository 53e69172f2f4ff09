package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. They are returned before any event is produced.
var (
	// ErrUnknownOrderMode is returned for an order mode outside the four supported nestings.
	ErrUnknownOrderMode = errors.New("unknown acquisition order mode")

	// ErrZeroZStep is returned when z-stacking is enabled with a zero step.
	ErrZeroZStep = errors.New("zero z step size with z-stacking enabled")

	// ErrNoChannels is returned when the channel axis is enabled but no channel is in use.
	ErrNoChannels = errors.New("channel axis enabled without any channel in use")

	// ErrInvalidSettings is returned for out-of-range numeric settings.
	ErrInvalidSettings = errors.New("invalid acquisition settings")
)

// ErrAcquisitionRunning is returned when an acquisition is started while
// another one is active.
var ErrAcquisitionRunning = errors.New("an acquisition is already running")

// ErrRunNotFound is returned when a run record cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// SettingsError reports which settings field failed validation.
type SettingsError struct {
	Field string
	Err   error
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("settings field '%s': %v", e.Field, e.Err)
}

func (e *SettingsError) Unwrap() error {
	return e.Err
}
