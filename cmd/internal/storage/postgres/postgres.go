// Package postgres provides the pgx-backed storage.UnitOfWork.
package postgres

import (
	"context"
	"errors"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
	"chatty/cmd/internal/storage/pgdb"

	"github.com/jackc/pgx/v5"
)

// UnitOfWork opens one read-committed transaction per Do and binds the
// identity and session stores to it.
type UnitOfWork struct {
	db     pgdb.TxBeginner
	schema string
}

var _ storage.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork returns a UnitOfWork over db (typically a *pgxpool.Pool).
func NewUnitOfWork(db pgdb.TxBeginner, schema string) (*UnitOfWork, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	if schema == "" {
		schema = pgdb.DefaultSchema
	}
	v, err := pgdb.CheckSchema(schema)
	if err != nil {
		return nil, err
	}
	return &UnitOfWork{db: db, schema: v}, nil
}

type repos struct {
	users    *identity.PostgresStore
	sessions *session.PostgresStore
}

func (r repos) Users() identity.Store   { return r.users }
func (r repos) Sessions() session.Store { return r.sessions }

// Do runs fn in a transaction; fn's error or ctx cancellation rolls it back.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos storage.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return pgdb.WithTx(ctx, u.db, func(tx pgx.Tx) error {
		users, err := identity.NewPostgresStore(tx, identity.WithSchema(u.schema))
		if err != nil {
			return err
		}
		sessions, err := session.NewPostgresStore(tx, session.WithSchema(u.schema))
		if err != nil {
			return err
		}
		return fn(ctx, repos{users: users, sessions: sessions})
	})
}
