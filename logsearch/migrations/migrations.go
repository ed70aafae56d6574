// Package migrations embeds the saved search schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
