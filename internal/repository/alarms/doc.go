// Package alarms implements the durable alarm store.
//
// Every backend satisfies Repository: SQLite (default), badger, a single JSON
// file written through protojson, and an in-memory map. Degrading wraps a
// durable backend with an in-memory mirror so the daemon keeps working for the
// rest of its lifetime when the durable backend becomes unavailable.
package alarms
