// Package migrations holds the SQLite schema as golang-migrate files, embedded
// so the importer can create its store without any files next to the binary.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql migration.
//
//go:embed *.sql
var FS embed.FS
