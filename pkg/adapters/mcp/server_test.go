package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stackJSON = `{
	"use_slices": true,
	"slice_z_bottom_um": 0,
	"slice_z_top_um": 4,
	"slice_z_step_um": 1
}`

func newServer() (*Server, *lattice.Engine) {
	engine := lattice.New(memory.NewHardware(), lattice.WithClock(testutils.NewFakeClock(time.Unix(0, 0))))
	return NewServer(engine), engine
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestPlanEvents(t *testing.T) {
	s, _ := newServer()
	ctx := context.Background()

	// 1. Default limit covers the whole stack
	resp, err := s.handlePlanEvents(ctx, request(map[string]any{"settings": stackJSON}), SettingsArgs{Settings: stackJSON})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Summary.TotalEvents)
	assert.Len(t, resp.Events, 5)
	assert.False(t, resp.Truncated)
	z, _ := resp.Events[4].Z()
	assert.Equal(t, 4.0, z)

	// 2. Explicit limit truncates
	resp, err = s.handlePlanEvents(ctx, request(map[string]any{"settings": stackJSON, "limit": 2}), SettingsArgs{Settings: stackJSON, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Events, 2)
	assert.True(t, resp.Truncated)

	// 3. Zero means summary only
	resp, err = s.handlePlanEvents(ctx, request(map[string]any{"settings": stackJSON, "limit": 0}), SettingsArgs{Settings: stackJSON})
	require.NoError(t, err)
	assert.Empty(t, resp.Events)
	assert.True(t, resp.Truncated)
}

func TestPlanEvents_RejectsBadSettings(t *testing.T) {
	s, _ := newServer()
	ctx := context.Background()

	_, err := s.handlePlanEvents(ctx, request(nil), SettingsArgs{Settings: `{"use_slices": true, "slice_z_step_um": 0}`})
	assert.ErrorIs(t, err, domain.ErrZeroZStep)

	_, err = s.handlePlanEvents(ctx, request(nil), SettingsArgs{Settings: `not json`})
	assert.ErrorContains(t, err, "invalid settings")
}

func TestStartStatusAbort(t *testing.T) {
	s, engine := newServer()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	engine.AddHook(domain.BeforeHardware, ports.HookFunc(func(_ context.Context, e *domain.Event) (*domain.Event, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
			<-release
		}
		return e, nil
	}))

	status, err := s.handleStatus(ctx, request(nil), nil)
	require.NoError(t, err)
	assert.False(t, status.Running)

	rec, err := s.handleStart(ctx, request(nil), SettingsArgs{Settings: stackJSON})
	require.NoError(t, err)
	assert.Equal(t, 5, rec.EventsPlanned)
	<-started

	_, err = s.handleStart(ctx, request(nil), SettingsArgs{Settings: stackJSON})
	assert.ErrorIs(t, err, domain.ErrAcquisitionRunning)

	status, err = s.handleStatus(ctx, request(nil), nil)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, rec.ID, status.Record.ID)

	assert.True(t, engine.Abort())
	status = s.status()
	assert.True(t, status.AbortRequested)

	close(release)
	run, ok := engine.Current()
	if ok {
		final, err := run.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.RunAborted, final.Status)
	}
}
