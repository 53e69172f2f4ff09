package memory

import (
	"context"
	"fmt"
	"sync"
)

// Command is one call recorded by the simulated hardware.
type Command struct {
	Op   string
	Args []any
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Op
	}
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

// Hardware is a simulated microscope implementing ports.Hardware and
// ports.Camera. Every call is recorded. Safe for concurrent use.
type Hardware struct {
	mu sync.Mutex

	z          float64
	x, y       float64
	shutter    bool
	auto       bool
	continuous bool
	exposure   float64
	configs    map[string]string
	snaps      int

	log   []Command
	fail  map[string]error
	onCmd func(Command)
}

// HardwareOption configures the simulated Hardware.
type HardwareOption func(*Hardware)

// WithFocus sets the initial focus position.
func WithFocus(z float64) HardwareOption {
	return func(h *Hardware) { h.z = z }
}

// WithContinuousFocus sets the initial continuous focus state.
func WithContinuousFocus(enabled bool) HardwareOption {
	return func(h *Hardware) { h.continuous = enabled }
}

// WithConfig sets the initial preset of group.
func WithConfig(group, preset string) HardwareOption {
	return func(h *Hardware) { h.configs[group] = preset }
}

// NewHardware creates a simulated microscope with auto-shutter on.
func NewHardware(opts ...HardwareOption) *Hardware {
	h := &Hardware{auto: true, configs: make(map[string]string), fail: make(map[string]error)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FailOn makes every later call of op return err. A nil err clears it.
func (h *Hardware) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.fail, op)
		return
	}
	h.fail[op] = err
}

// OnCommand registers fn to observe every recorded command.
func (h *Hardware) OnCommand(fn func(Command)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCmd = fn
}

// Commands returns a copy of the command log.
func (h *Hardware) Commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Command, len(h.log))
	copy(out, h.log)
	return out
}

// Count returns how many times op was called.
func (h *Hardware) Count(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.log {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Snaps returns the number of exposures taken.
func (h *Hardware) Snaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snaps
}

// record logs the call and returns the configured failure, if any.
// Callers hold h.mu.
func (h *Hardware) record(op string, args ...any) error {
	cmd := Command{Op: op, Args: args}
	h.log = append(h.log, cmd)
	if h.onCmd != nil {
		h.onCmd(cmd)
	}
	return h.fail[op]
}

func (h *Hardware) Position(ctx context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("Position"); err != nil {
		return 0, err
	}
	return h.z, nil
}

func (h *Hardware) SetPosition(ctx context.Context, z float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetPosition", z); err != nil {
		return err
	}
	h.z = z
	return nil
}

func (h *Hardware) SetXYPosition(ctx context.Context, x, y float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetXYPosition", x, y); err != nil {
		return err
	}
	h.x, h.y = x, y
	return nil
}

// XY returns the current stage position.
func (h *Hardware) XY() (float64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.x, h.y
}

// Focus returns the current focus position without recording a call.
func (h *Hardware) Focus() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.z
}

func (h *Hardware) ShutterOpen(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("ShutterOpen"); err != nil {
		return false, err
	}
	return h.shutter, nil
}

func (h *Hardware) SetShutterOpen(ctx context.Context, open bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetShutterOpen", open); err != nil {
		return err
	}
	h.shutter = open
	return nil
}

func (h *Hardware) AutoShutter(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("AutoShutter"); err != nil {
		return false, err
	}
	return h.auto, nil
}

func (h *Hardware) SetAutoShutter(ctx context.Context, auto bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetAutoShutter", auto); err != nil {
		return err
	}
	h.auto = auto
	return nil
}

func (h *Hardware) ContinuousFocusEnabled(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("ContinuousFocusEnabled"); err != nil {
		return false, err
	}
	return h.continuous, nil
}

func (h *Hardware) EnableContinuousFocus(ctx context.Context, enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("EnableContinuousFocus", enable); err != nil {
		return err
	}
	h.continuous = enable
	return nil
}

// ContinuousFocus returns the continuous focus state without recording a call.
func (h *Hardware) ContinuousFocus() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.continuous
}

func (h *Hardware) FullFocus(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.record("FullFocus")
}

func (h *Hardware) CurrentConfig(ctx context.Context, group string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("CurrentConfig", group); err != nil {
		return "", err
	}
	return h.configs[group], nil
}

func (h *Hardware) SetConfig(ctx context.Context, group, preset string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetConfig", group, preset); err != nil {
		return err
	}
	h.configs[group] = preset
	return nil
}

// Config returns the current preset of group without recording a call.
func (h *Hardware) Config(group string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configs[group]
}

// Shutter returns the shutter and auto-shutter state without recording a call.
func (h *Hardware) Shutter() (open, auto bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutter, h.auto
}

func (h *Hardware) SetExposure(ctx context.Context, ms float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("SetExposure", ms); err != nil {
		return err
	}
	h.exposure = ms
	return nil
}

func (h *Hardware) Snap(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record("Snap"); err != nil {
		return err
	}
	h.snaps++
	return nil
}
