package ports

import "context"

// Hardware is the facade over the device layer. Every call may block until the
// device settled, and every call may fail.
type Hardware interface {
	// Position returns the current focus position in micrometers.
	Position(ctx context.Context) (float64, error)
	// SetPosition moves the focus drive.
	SetPosition(ctx context.Context, z float64) error
	// SetXYPosition moves the XY stage.
	SetXYPosition(ctx context.Context, x, y float64) error

	ShutterOpen(ctx context.Context) (bool, error)
	SetShutterOpen(ctx context.Context, open bool) error
	AutoShutter(ctx context.Context) (bool, error)
	SetAutoShutter(ctx context.Context, auto bool) error

	ContinuousFocusEnabled(ctx context.Context) (bool, error)
	EnableContinuousFocus(ctx context.Context, enable bool) error
	// FullFocus runs a complete autofocus search at the current location.
	FullFocus(ctx context.Context) error

	CurrentConfig(ctx context.Context, group string) (string, error)
	SetConfig(ctx context.Context, group, preset string) error
}

// Camera is implemented by hardware that can expose. The run loop uses it for
// the exposure step between the after-hardware and after-exposure stages.
type Camera interface {
	SetExposure(ctx context.Context, ms float64) error
	Snap(ctx context.Context) error
}

// FocusReader is the subset of Hardware needed to generate events.
type FocusReader interface {
	Position(ctx context.Context) (float64, error)
}
