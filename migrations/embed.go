// Package migrations embeds the goose SQL migrations applied at startup and by cmd/migrate.
package migrations

import "embed"

// FS holds every .sql file of this directory, applied in version order.
//
//go:embed *.sql
var FS embed.FS
