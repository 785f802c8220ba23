// Package migrations embeds the message store schema migration files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
