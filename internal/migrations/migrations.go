// Package migrations embeds the PostgreSQL schema for prediction audit and
// training-run records.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
