// Package migrations embeds the goose SQL migrations for every supported
// database dialect, one directory per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

const (
	DirPostgres = "postgres"
	DirSQLite   = "sqlite"
)
