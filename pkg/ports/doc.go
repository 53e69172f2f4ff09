/*
Package ports defines the driven ports (interfaces) of the acquisition engine.

These interfaces decouple the event generation and hook orchestration from the
device layer, persistence and coordination between processes.

# Key Interfaces

  - Hardware: The facade over focus, XY stage, shutter, autofocus and configuration presets.
  - Camera: Optional exposure control used by the run loop.
  - Hook: A side effect bound to one lifecycle stage of each event.
  - EventSource: The pull-based event stream consumed by the run loop.
  - RunStore: Persists run records.
  - DistributedLocker: Ensures a single acquisition across processes.
*/
package ports
