// Package migrations embeds the SQLite schema of the notifier identity cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
