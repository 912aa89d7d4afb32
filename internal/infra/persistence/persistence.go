// Package persistence selects a registry backend from configuration.
package persistence

import (
	"fmt"

	"provcore/internal/core"
	"provcore/internal/infra/persistence/memory"
	"provcore/internal/infra/persistence/postgres"
	"provcore/internal/infra/persistence/sqlite"
	"provcore/pkg/domain"
)

// Supported driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config names the backend and its location. DSN is the database path
// for sqlite and the connection string for postgres; memory ignores it.
type Config struct {
	Driver string
	DSN    string
}

// Open builds the configured backend. An empty driver means memory.
func Open(cfg Config, admin string, engine *domain.RulesEngine, opts ...core.StoreOption) (domain.RegistryStore, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.NewStore(admin, engine, opts...), nil
	case DriverSQLite:
		return sqlite.NewStore(cfg.DSN, admin, engine, opts...)
	case DriverPostgres:
		return postgres.NewStore(cfg.DSN, admin, engine, opts...)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}
