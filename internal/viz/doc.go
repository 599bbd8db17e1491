// Package viz replays a recorded run in the terminal with Bubble Tea.
//
// The view shows the mass on its rail against the setpoint, position and
// command charts, and the run's metrics. Replay pacing is visual only; the
// records themselves carry simulated time.
//
// # Key Bindings
//
//	Space - Pause/Resume replay
//	R     - Restart from the first tick
//	[ ]   - Step back/forward one second of records
//	+ -   - Change replay speed
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
