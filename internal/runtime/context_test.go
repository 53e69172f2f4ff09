package runtime_test

import (
	"testing"
	"time"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestRunContext_NextWakeFromMonitor(t *testing.T) {
	rc := runtime.NewRunContext("run", testutils.NewFakeClock(epoch))

	_, ok := rc.NextWake()
	assert.False(t, ok)

	untimed := domain.NewEvent("run")
	rc.Monitor(untimed)
	_, ok = rc.NextWake()
	assert.False(t, ok, "events without a start time leave the wake time alone")

	timed := domain.NewEvent("run")
	timed.SetMinimumStartTime(3 * time.Second)
	rc.Monitor(timed)

	wake, ok := rc.NextWake()
	assert.True(t, ok)
	assert.True(t, wake.Equal(epoch.Add(3*time.Second)))
}

func TestRunContext_Flags(t *testing.T) {
	clock := testutils.NewFakeClock(epoch)
	rc := runtime.NewRunContext("run", clock)

	assert.False(t, rc.Paused())
	rc.SetPaused(true)
	assert.True(t, rc.Paused())

	assert.False(t, rc.AbortRequested())
	rc.RequestAbort()
	assert.True(t, rc.AbortRequested())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, rc.Elapsed())
	assert.Equal(t, epoch, rc.StartTime())
}
