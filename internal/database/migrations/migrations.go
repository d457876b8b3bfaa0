// Package migrations holds the bun-managed schema migrations.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry all migration files register into.
var Migrations = migrate.NewMigrations()
