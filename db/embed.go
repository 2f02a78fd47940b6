// Package db provides the embedded database migrations.
package db

import "embed"

// Migrations holds the numbered up/down SQL files applied by golang-migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
