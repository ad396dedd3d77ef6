// Package migrations embeds the reference schema SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
