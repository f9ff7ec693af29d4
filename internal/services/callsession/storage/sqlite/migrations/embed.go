package migrations

import "embed"

// FS contains embedded SQLite migrations for call session storage.
//
//go:embed *.sql
var FS embed.FS
