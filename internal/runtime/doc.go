// Package runtime runs acquisitions: the per-run context, the hook pipeline
// and the loop that paces events and commands the hardware.
package runtime
