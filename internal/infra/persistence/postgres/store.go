// Package postgres persists the registry to a Postgres snapshot table
// with JSONB payloads, mirroring the sqlite backend.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	sqldocs "provcore/docs/schema/sql"
	"provcore/internal/core"
	"provcore/internal/infra/persistence/memory"
	"provcore/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/provcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store wraps the in-memory registry and snapshots it to Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

var _ domain.RegistryStore = (*Store)(nil)

// NewStore connects with the given DSN (falling back to a local
// default), ensures the snapshot table exists, and hydrates the registry
// from any existing snapshot.
func NewStore(dsn, admin string, engine *domain.RulesEngine, opts ...core.StoreOption) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqldocs.Postgres); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(admin, engine, opts...), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		roster   memory.RosterState
		products []core.ProductState
		counter  memory.CounterState
		loaded   bool
	)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		loaded = true
		switch bucket {
		case memory.BucketRoster:
			if err := json.Unmarshal(payload, &roster); err != nil {
				return fmt.Errorf("decode roster: %w", err)
			}
		case memory.BucketProducts:
			if err := json.Unmarshal(payload, &products); err != nil {
				return fmt.Errorf("decode products: %w", err)
			}
		case memory.BucketCounter:
			if err := json.Unmarshal(payload, &counter); err != nil {
				return fmt.Errorf("decode counter: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !loaded {
		return nil
	}
	if err := s.ImportState(memory.JoinState(roster, products, counter)); err != nil {
		return fmt.Errorf("hydrate from postgres: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, products, counter := memory.SplitState(s.ExportState())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets {
		var data []byte
		switch bucket {
		case memory.BucketRoster:
			data, err = json.Marshal(roster)
		case memory.BucketProducts:
			data, err = json.Marshal(products)
		case memory.BucketCounter:
			data, err = json.Marshal(counter)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
			bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// RegisterProduct commits in memory, then snapshots to Postgres.
func (s *Store) RegisterProduct(ctx context.Context, caller string, input domain.ProductInput) (domain.Product, domain.Result, error) {
	product, res, err := s.Store.RegisterProduct(ctx, caller, input)
	if err != nil {
		return product, res, err
	}
	if err := s.persist(ctx); err != nil {
		return product, res, err
	}
	return product, res, nil
}

// TransferProduct commits in memory, then snapshots to Postgres.
func (s *Store) TransferProduct(ctx context.Context, caller string, id uint64, input domain.TransferInput) (domain.Product, domain.Result, error) {
	product, res, err := s.Store.TransferProduct(ctx, caller, id, input)
	if err != nil {
		return product, res, err
	}
	if err := s.persist(ctx); err != nil {
		return product, res, err
	}
	return product, res, nil
}

// AuthorizeParticipant commits in memory, then snapshots to Postgres.
func (s *Store) AuthorizeParticipant(ctx context.Context, caller, target, role string) (domain.Participant, domain.Result, error) {
	participant, res, err := s.Store.AuthorizeParticipant(ctx, caller, target, role)
	if err != nil {
		return participant, res, err
	}
	if err := s.persist(ctx); err != nil {
		return participant, res, err
	}
	return participant, res, nil
}

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the connector for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
