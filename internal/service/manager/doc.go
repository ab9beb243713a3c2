// Package manager owns the alarm subsystem of one daemon: the durable store,
// the live timer set, the reconciler, the command router and the notification
// dispatcher.
//
// A Manager is an explicit context object. Run restores pending alarms from
// the store and then serializes every command, timer fire and reconciliation
// tick on a single goroutine, so the live timer set needs no locking. Several
// managers can coexist in one process.
package manager
