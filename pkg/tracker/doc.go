// Package tracker reports dirty settings to a single listener.
//
// # Coalescing Behavior
//
// Changes are not reported as they happen. The host calls Tick from its
// main loop; once MinInterval has elapsed since the last report, Tick
// collects every dirty leaf into one partial document, hands it to the
// registered callback and clears the dirty flags. Any number of changes
// between two reports produce one notification carrying the final values.
//
// Ticks without dirty leaves never invoke the callback.
//
// # Listener
//
// There is exactly one callback slot. OnDirty replaces the previous
// callback; passing nil unregisters it. While no callback is registered,
// Tick does nothing and dirty flags accumulate until a listener appears.
//
// # Clock
//
// Tick takes the current time as unsigned milliseconds, as produced by a
// free-running device counter. Elapsed time is computed with unsigned
// subtraction, so the counter may wrap around.
package tracker
