package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store over a single "schema"."kv" table.
//
// Notes:
//   - The store owns the pool only when built by OpenPostgres; NewPostgres callers
//     keep ownership and Close is then a no-op.
//   - Schema identifiers are validated and quoted; values are BYTEA.
type Postgres struct {
	pool      *pgxpool.Pool
	schema    string
	ownsPool  bool
	tableName string
}

// PostgresOption configures the store.
type PostgresOption func(*Postgres) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the kv table (default "skillforge").
func WithSchema(schema string) PostgresOption {
	return func(s *Postgres) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("kv: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("kv: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgres builds a store over a caller-owned pool and ensures the table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*Postgres, error) {
	st := &Postgres{pool: pool, schema: "skillforge"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("kv: nil pool")
	}
	st.tableName = pgx.Identifier{st.schema, "kv"}.Sanitize()

	if err := st.migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// OpenPostgres connects to url, validates connectivity and owns the resulting pool.
func OpenPostgres(ctx context.Context, url string, opts ...PostgresOption) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("kv: parse postgres url: %w", err)
	}
	pcfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("kv: connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kv: ping postgres: %w", err)
	}

	st, err := NewPostgres(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	st.ownsPool = true
	return st, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	schema := pgx.Identifier{s.schema}.Sanitize()
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schema); err != nil {
		return fmt.Errorf("kv: create schema: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.tableName+` (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("kv: create table: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("kv: empty key")
	}

	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM `+s.tableName+` WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if !validKey(key) {
		return fmt.Errorf("kv: empty key")
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.tableName+` (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	return err
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.tableName+` WHERE key = $1`, key)
	return err
}

func (s *Postgres) Ping(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// Close closes the pool when this store opened it.
func (s *Postgres) Close() error {
	if s == nil || s.pool == nil || !s.ownsPool {
		return nil
	}
	s.pool.Close()
	return nil
}
