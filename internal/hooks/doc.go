/*
Package hooks implements the built-in acquisition hooks.

Each hook owns exactly the state it needs (saved focus, saved shutter mode,
last position) and is created fresh for every acquisition by Defaults.
Hooks that bracket a burst of events use the same geometry to decide where a
z-stack or channel sweep starts and ends, so saves and restores always pair up.
*/
package hooks
