package migrations

import "embed"

// FS embeds the SQL migrations for the notes index database.
//
//go:embed *.sql
var FS embed.FS
