// Package migrations embeds the goose SQL migrations for the worker schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
