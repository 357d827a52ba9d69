// Package viz renders simulation state in the terminal.
//
// [Monitor] is a Bubble Tea program that steps an experiment live and shows
// vitals with sparklines, a Braille trend chart of the selected key, and the
// intervention log.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	Tab   - Cycle the charted key
//	[ ]   - Previous/next lane
//	+ -   - Steps per tick
//	e f a p b - Epinephrine, saline bolus, antibiotics, acetaminophen, blood test
//	t     - Cycle color themes
//	q     - Quit
package viz
