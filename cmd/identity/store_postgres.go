package identity

import (
	"context"
	"errors"
	"strings"

	"chatty/cmd/internal/storage/pgdb"

	"github.com/jackc/pgx/v5"
)

// PostgresStore implements Store over PostgreSQL.
//
// The handle is owned by the caller and may be a pool or a transaction;
// the store never begins, commits or closes anything itself.
// Table identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	db     pgdb.DBTX
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the store (default "chatty").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgdb.CheckSchema(schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore bound to db.
func NewPostgresStore(db pgdb.DBTX, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: pgdb.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, errors.New("identity: nil db")
	}
	return st, nil
}

const userColumns = `id, user_name, normalized_user_name, email, normalized_email,
		        password_hash, display_name, created_at, updated_at, is_deleted`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.UserName,
		&u.NormalizedUserName,
		&u.Email,
		&u.NormalizedEmail,
		&u.PasswordHash,
		&u.DisplayName,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.IsDeleted,
	)
	return u, err
}

func (s *PostgresStore) getBy(ctx context.Context, column, value string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	users := pgdb.Ident(s.schema, "users")

	// column is one of a fixed set chosen by the callers below.
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		   FROM `+users+`
		  WHERE `+column+` = $1`,
		value,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ID; (nil, nil) when absent.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail loads a user by normalized email.
func (s *PostgresStore) GetByEmail(ctx context.Context, normalizedEmail string) (*User, error) {
	return s.getBy(ctx, "normalized_email", normalizedEmail)
}

// GetByUserName loads a user by normalized username.
func (s *PostgresStore) GetByUserName(ctx context.Context, normalizedUserName string) (*User, error) {
	return s.getBy(ctx, "normalized_user_name", normalizedUserName)
}

func (s *PostgresStore) exists(ctx context.Context, column, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	users := pgdb.Ident(s.schema, "users")

	var taken bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+users+` WHERE `+column+` = $1)`,
		value,
	).Scan(&taken)
	return taken, err
}

// IsEmailTaken reports whether any account (deleted or not) holds the normalized email.
func (s *PostgresStore) IsEmailTaken(ctx context.Context, normalizedEmail string) (bool, error) {
	return s.exists(ctx, "normalized_email", normalizedEmail)
}

// IsUserNameTaken reports whether any account (deleted or not) holds the normalized username.
func (s *PostgresStore) IsUserNameTaken(ctx context.Context, normalizedUserName string) (bool, error) {
	return s.exists(ctx, "normalized_user_name", normalizedUserName)
}

// Add inserts a new user. The unique indexes on the normalized keys are authoritative.
func (s *PostgresStore) Add(ctx context.Context, u User) error {
	const op = "identity.Add"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.ID) == "" {
		return invalid(op, "missing id")
	}
	if u.NormalizedEmail == "" || u.NormalizedUserName == "" {
		return invalid(op, "missing normalized keys")
	}

	users := pgdb.Ident(s.schema, "users")

	_, err := s.db.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, user_name, normalized_user_name, email, normalized_email,
		     password_hash, display_name, created_at, updated_at, is_deleted
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID,
		u.UserName,
		u.NormalizedUserName,
		u.Email,
		u.NormalizedEmail,
		u.PasswordHash,
		pgdb.NullIfEmpty(u.DisplayName),
		u.CreatedAt,
		u.UpdatedAt,
		u.IsDeleted,
	)
	if err != nil {
		if constraint, ok := pgdb.UniqueViolation(err); ok {
			return ConflictError{Op: op, Field: classifyUserConstraint(constraint)}
		}
		return err
	}
	return nil
}

// Update persists the mutable columns of u.
func (s *PostgresStore) Update(ctx context.Context, u User) error {
	const op = "identity.Update"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.ID) == "" {
		return invalid(op, "missing id")
	}

	users := pgdb.Ident(s.schema, "users")

	ct, err := s.db.Exec(ctx,
		`UPDATE `+users+`
		    SET password_hash = $2,
		        display_name = $3,
		        updated_at = $4,
		        is_deleted = $5
		  WHERE id = $1`,
		u.ID,
		u.PasswordHash,
		pgdb.NullIfEmpty(u.DisplayName),
		u.UpdatedAt,
		u.IsDeleted,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

// classifyUserConstraint prefers the migration's constraint names and falls back to substring matching.
func classifyUserConstraint(c string) string {
	switch c {
	case "uq_users_normalized_user_name":
		return FieldUserName
	case "uq_users_normalized_email":
		return FieldEmail
	}
	switch {
	case strings.Contains(c, "user_name"), strings.Contains(c, "username"):
		return FieldUserName
	case strings.Contains(c, "email"):
		return FieldEmail
	default:
		return "unique"
	}
}
