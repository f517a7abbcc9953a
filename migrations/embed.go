// Package migrations embeds the SQL schema files applied by `store migrate`.
package migrations

import "embed"

// Files exposes embedded SQL migration files ordered lexicographically.
//
//go:embed *.sql
var Files embed.FS
