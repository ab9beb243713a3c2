// Package timer keeps the live timer set: at most one single-shot deferred
// callback per alarm key, ordered in a min-heap by fire time and driven by a
// single time.Timer whose sleep is capped so wall-clock jumps are noticed.
//
// The scheduler is passive and not safe for concurrent use. Its owner selects
// on C() and calls FireDue when the channel fires.
package timer
