// Package migrations holds the versioned PostgreSQL schema. The files are
// embedded so the server can migrate without a checkout of this directory.
package migrations

import "embed"

// FS contains every *.sql migration
//
//go:embed *.sql
var FS embed.FS
