// Package migrations embeds the SQLite schema of the auth service.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
