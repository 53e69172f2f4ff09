/*
Package lattice generates and runs multi-dimensional microscopy acquisitions.

An acquisition is described by domain.Settings: channels, z-slices, time
points and stage positions, nested in one of four order modes. The engine
expands the settings into a lazy stream of events, one per image, and runs
each event through hooks at four lifecycle stages while it commands the
hardware.

# Concept

Lattice separates what to acquire (the event stream, package sequence) from
how the microscope is driven (ports.Hardware) and from the side effects around
each image (ports.Hook). Built-in hooks save and restore focus around
z-stacks, keep the shutter open across bursts, suspend continuous autofocus,
run autofocus, shift time-lapses per position and restore the channel preset.
Every hook is closed when the acquisition ends, however it ends, so the
hardware is left as it was found.

# Key Features

  - Lazy Generation: Events are materialized only when the run loop pulls them.
  - Exact Ordering: The four order modes are a fixed nesting table, never guessed.
  - Fail-Open Hooks: A failing hook is logged and the acquisition continues.
  - Single Acquisition: Only one run is active, optionally across processes via a locker.

# Usage

	hw := memory.NewHardware()
	eng := lattice.New(hw, lattice.WithLogger(slog.Default()))

	eng.AttachRunnable(lattice.Any, 0, 1, lattice.Any, func(ctx context.Context, e *domain.Event) error {
		// runs at position 0, channel 1
		return nil
	})

	record, err := eng.Acquire(ctx, settings)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(record.Status, record.EventsExecuted)
*/
package lattice
