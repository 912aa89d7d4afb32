// Package sqldocs exposes the snapshot table DDL from the docs tree.
// The sqlite and postgres drivers execute these bundles on startup, so
// the documented schema is by construction the deployed one.
package sqldocs

import _ "embed"

// SQLite is the snapshot table DDL for the sqlite driver.
//
//go:embed sqlite.sql
var SQLite string

// Postgres is the snapshot table DDL for the postgres driver.
//
//go:embed postgres.sql
var Postgres string
