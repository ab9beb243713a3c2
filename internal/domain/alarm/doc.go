// Package alarm contains core domain types for the alarm business logic.
//
// It defines Record (a persisted task or departure alarm), the Command messages
// foreground clients send to the daemon and the Event messages the daemon sends
// back. Records carry absolute due timestamps so they stay meaningful after any
// amount of downtime.
package alarm
