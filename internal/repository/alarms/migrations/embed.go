// Package migrations embeds the SQLite schema of the alarm store.
package migrations

import "embed"

// FS contains embedded SQLite migrations for the alarm store.
//
//go:embed *.sql
var FS embed.FS
