package testutils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// WriteSettingsFile writes content to a file named name in a fresh temp
// directory and returns its absolute path.
// It fails the test immediately on error.
func WriteSettingsFile(t *testing.T, name, content string) string {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join(t.TempDir(), name))
	require.NoError(t, err, "Failed to get absolute path for temp file")

	err = os.WriteFile(absPath, []byte(content), 0o644)
	require.NoError(t, err, "Failed to write settings file")

	return absPath
}

// FakeClock is a clock whose time only moves when somebody sleeps on it.
// After advances the clock by d and fires immediately, so waits in tests take
// no wall time.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(total time.Duration)
}

// NewFakeClock returns a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.sleeps = append(c.sleeps, d)
	now := c.now
	var total time.Duration
	for _, s := range c.sleeps {
		total += s
	}
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(total)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward without a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// OnSleep registers fn to run after every After call with the total slept time.
func (c *FakeClock) OnSleep(fn func(total time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = fn
}

// Slept returns the total time spent in After.
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, s := range c.sleeps {
		total += s
	}
	return total
}
