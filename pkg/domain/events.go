package domain

import (
	"context"
	"fmt"
)

// Stage is a point in an event's lifecycle where hooks run.
type Stage int

const (
	// BeforeHardware runs before any hardware is commanded for the event.
	BeforeHardware Stage = iota
	// AfterHardware runs once the hardware reached the event's state.
	AfterHardware
	// AfterExposure runs after the camera exposure finished.
	AfterExposure
	// AcquisitionFinished runs once, on the sentinel, after the last event.
	AcquisitionFinished
)

// Stages lists the stages in invocation order.
var Stages = []Stage{BeforeHardware, AfterHardware, AfterExposure, AcquisitionFinished}

func (s Stage) String() string {
	switch s {
	case BeforeHardware:
		return "before_hardware"
	case AfterHardware:
		return "after_hardware"
	case AfterExposure:
		return "after_exposure"
	case AcquisitionFinished:
		return "acquisition_finished"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// LifecycleHooks defines callbacks for acquisition observability.
// They observe and never alter events; any field may be nil.
type LifecycleHooks struct {
	OnRunStart        func(context.Context, *RunRecord)
	OnEventGenerated  func(context.Context, *Event)
	OnEventExecuted   func(context.Context, *Event)
	OnEventSuppressed func(context.Context, Stage, *Event)
	OnHookError       func(context.Context, Stage, *Event, error)
	OnRunEnd          func(context.Context, *RunRecord)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:        chain2(h.OnRunStart, other.OnRunStart),
		OnEventGenerated:  chain2(h.OnEventGenerated, other.OnEventGenerated),
		OnEventExecuted:   chain2(h.OnEventExecuted, other.OnEventExecuted),
		OnEventSuppressed: chain3(h.OnEventSuppressed, other.OnEventSuppressed),
		OnHookError:       chain4(h.OnHookError, other.OnHookError),
		OnRunEnd:          chain2(h.OnRunEnd, other.OnRunEnd),
	}
}

func chain2[A any](a, b func(context.Context, A)) func(context.Context, A) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, v A) {
		a(ctx, v)
		b(ctx, v)
	}
}

func chain3[A, B any](a, b func(context.Context, A, B)) func(context.Context, A, B) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, x A, y B) {
		a(ctx, x, y)
		b(ctx, x, y)
	}
}

func chain4[A, B, C any](a, b func(context.Context, A, B, C)) func(context.Context, A, B, C) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, x A, y B, z C) {
		a(ctx, x, y, z)
		b(ctx, x, y, z)
	}
}
