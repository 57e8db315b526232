// Package migrations embeds the goose SQL migrations for the chatty schema
// and applies them through a pgx-backed database/sql handle.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"chatty/cmd/internal/storage/pgdb"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

// FS returns the migration files rooted at the migration directory.
func FS() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}

// Migrator applies migrations into a single schema.
//
// Migration files use unqualified table names; the migrator runs them on a
// dedicated pool whose search_path is the target schema, so the same files
// serve the default "chatty" schema and throwaway test schemas.
type Migrator struct {
	schema   string
	pool     *pgxpool.Pool
	db       *sql.DB
	provider *goose.Provider
}

// Open creates the schema if needed and prepares a goose provider for it.
// The caller's pool is only used to derive connection settings and to create the schema.
func Open(ctx context.Context, pool *pgxpool.Pool, schema string) (*Migrator, error) {
	if pool == nil {
		return nil, errors.New("migrations: nil pool")
	}
	schema, err := pgdb.CheckSchema(schema)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgdb.Ident1(schema)); err != nil {
		return nil, fmt.Errorf("migrations: create schema: %w", err)
	}

	cfg := pool.Config()
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 2
	cfg.MinConns = 0

	mp, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("migrations: pool: %w", err)
	}

	db := stdlib.OpenDBFromPool(mp)

	provider, err := goose.NewProvider(goose.DialectPostgres, db, FS())
	if err != nil {
		_ = db.Close()
		mp.Close()
		return nil, fmt.Errorf("migrations: provider: %w", err)
	}

	return &Migrator{
		schema:   schema,
		pool:     mp,
		db:       db,
		provider: provider,
	}, nil
}

// Schema returns the schema the migrator targets.
func (m *Migrator) Schema() string { return m.schema }

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	return m.provider.Up(ctx)
}

// Status reports every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

// Version returns the highest applied migration version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// Close releases the migration connections.
func (m *Migrator) Close() error {
	err := m.db.Close()
	m.pool.Close()
	return err
}

// Up is a convenience wrapper that opens a migrator, applies all migrations and closes it.
func Up(ctx context.Context, pool *pgxpool.Pool, schema string) ([]*goose.MigrationResult, error) {
	m, err := Open(ctx, pool, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	return m.Up(ctx)
}
