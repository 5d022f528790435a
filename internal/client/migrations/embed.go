// Package migrations embeds the goose SQL migrations of the local store. The
// highest applied goose version is the schema version of the database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
