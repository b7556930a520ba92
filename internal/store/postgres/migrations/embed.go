package migrations

import "embed"

// FS contains embedded Postgres migrations for program storage.
//
//go:embed *.sql
var FS embed.FS
