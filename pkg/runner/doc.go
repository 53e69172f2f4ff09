/*
Package runner drives one acquisition from a terminal or a pipe.

It is the bridge between the Engine and the outside world: it reports
progress through a pluggable OutputHandler, turns SIGINT/SIGTERM into an
abort request, and returns the final run record.

# Key Components

  - Runner: starts the acquisition and waits for it, handling signals.
  - OutputHandler: decouples how progress is presented (text, JSON lines).
  - TextHandler: human-readable progress for interactive CLI usage.
  - JSONHandler: one JSON object per line for scripts and supervisors.

# Usage

	r := runner.NewRunner(
		runner.WithHandler(runner.NewTextHandler(os.Stdout)),
		runner.WithLogger(logger),
	)

	rec, err := r.Run(ctx, engine, settings)
	if err != nil {
		log.Fatal(err)
	}
*/
package runner
