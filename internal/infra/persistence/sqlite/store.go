// Package sqlite persists the registry to a single SQLite table as JSON
// snapshot buckets, rewriting them after every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	sqldocs "provcore/docs/schema/sql"
	"provcore/internal/core"
	"provcore/internal/infra/persistence/memory"
	"provcore/pkg/domain"
)

const defaultPath = "provcore.db"

// Store wraps the in-memory registry and snapshots it to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var _ domain.RegistryStore = (*Store)(nil)

// NewStore opens (or creates) the database at path and hydrates the
// registry from any existing snapshot.
func NewStore(path, admin string, engine *domain.RulesEngine, opts ...core.StoreOption) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqldocs.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{
		Store: memory.NewStore(admin, engine, opts...),
		db:    db,
		path:  path,
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
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
		return fmt.Errorf("hydrate from %s: %w", s.path, err)
	}
	return nil
}

// persist rewrites all snapshot buckets inside one transaction. The
// mutex serializes writers so the last transaction always carries the
// newest state.
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
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
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

// RegisterProduct commits in memory, then snapshots to disk.
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

// TransferProduct commits in memory, then snapshots to disk.
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

// AuthorizeParticipant commits in memory, then snapshots to disk.
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
