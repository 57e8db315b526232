package session

import (
	"context"
	"errors"
	"fmt"

	"chatty/cmd/internal/storage/pgdb"

	"github.com/jackc/pgx/v5"
)

// PostgresStore implements Store over the refresh_tokens table.
//
// Bind it to a pgx.Tx for row locks to hold across a decision; bound to a pool
// every statement runs in its own implicit transaction.
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

// NewPostgresStore creates a Postgres-backed refresh-token store.
func NewPostgresStore(db pgdb.DBTX, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{db: db, schema: pgdb.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, errors.New("session: nil db")
	}
	return st, nil
}

const recordColumns = `id, user_id, token_hash, created_at, expires_at, created_by_ip,
		       revoked_at, revoked_reason, revoked_by_ip, replaced_by_token_id, is_reused`

func scanRecord(row pgx.Row) (RefreshTokenRecord, error) {
	var r RefreshTokenRecord
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.TokenHash,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.CreatedByIP,
		&r.RevokedAt,
		&r.RevokedReason,
		&r.RevokedByIP,
		&r.ReplacedByTokenID,
		&r.Reused,
	)
	return r, err
}

// Create inserts a new record.
func (s *PostgresStore) Create(ctx context.Context, r RefreshTokenRecord) error {
	if r.ID == "" || r.UserID == "" || r.TokenHash == "" {
		return fmt.Errorf("%w: missing id, user or hash", ErrInvalidRecord)
	}

	tbl := pgdb.Ident(s.schema, "refresh_tokens")

	_, err := s.db.Exec(ctx,
		`INSERT INTO `+tbl+` (
		     id, user_id, token_hash, created_at, expires_at, created_by_ip,
		     revoked_at, revoked_reason, revoked_by_ip, replaced_by_token_id, is_reused
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID,
		r.UserID,
		r.TokenHash,
		r.CreatedAt,
		r.ExpiresAt,
		pgdb.NullIfEmpty(r.CreatedByIP),
		r.RevokedAt,
		pgdb.NullIfEmpty(r.RevokedReason),
		pgdb.NullIfEmpty(r.RevokedByIP),
		pgdb.NullIfEmpty(r.ReplacedByTokenID),
		r.Reused,
	)
	if err != nil {
		if c, ok := pgdb.UniqueViolation(err); ok && (c == "uq_refresh_tokens_token_hash" || c == "") {
			return ErrDuplicateTokenHash
		}
		if pgdb.IsForeignKeyViolation(err) {
			return ErrUnknownUser
		}
		return err
	}
	return nil
}

// FindByTokenHash loads a record by hash and locks it for update.
func (s *PostgresStore) FindByTokenHash(ctx context.Context, hash string) (*RefreshTokenRecord, error) {
	if hash == "" {
		return nil, nil
	}

	tbl := pgdb.Ident(s.schema, "refresh_tokens")

	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		   FROM `+tbl+`
		  WHERE token_hash = $1
		  FOR UPDATE`,
		hash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListByUser returns a user's records ordered by created_at DESC.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, includeRevoked bool) ([]RefreshTokenRecord, error) {
	tbl := pgdb.Ident(s.schema, "refresh_tokens")

	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+`
		   FROM `+tbl+`
		  WHERE user_id = $1
		    AND ($2 OR revoked_at IS NULL)
		  ORDER BY created_at DESC, id DESC`,
		userID, includeRevoked,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RefreshTokenRecord, 0, 4)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const updateRevocationSQL = `UPDATE %s
		    SET revoked_at = $2,
		        revoked_reason = $3,
		        revoked_by_ip = $4,
		        replaced_by_token_id = $5,
		        is_reused = $6
		  WHERE id = $1
		    AND revoked_at IS NULL`

func revocationArgs(r RefreshTokenRecord) []any {
	return []any{
		r.ID,
		r.RevokedAt,
		pgdb.NullIfEmpty(r.RevokedReason),
		pgdb.NullIfEmpty(r.RevokedByIP),
		pgdb.NullIfEmpty(r.ReplacedByTokenID),
		r.Reused,
	}
}

// Update writes the revocation fields of r, only if the stored row is still unrevoked.
func (s *PostgresStore) Update(ctx context.Context, r RefreshTokenRecord) error {
	if r.ID == "" || r.RevokedAt == nil {
		return fmt.Errorf("%w: update needs a revoked record", ErrInvalidRecord)
	}

	tbl := pgdb.Ident(s.schema, "refresh_tokens")

	ct, err := s.db.Exec(ctx, fmt.Sprintf(updateRevocationSQL, tbl), revocationArgs(r)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrRevoked(ctx, r.ID)
	}
	return nil
}

// UpdateMany sends all revocations in one batch.
func (s *PostgresStore) UpdateMany(ctx context.Context, rs []RefreshTokenRecord) error {
	if len(rs) == 0 {
		return nil
	}

	tbl := pgdb.Ident(s.schema, "refresh_tokens")
	q := fmt.Sprintf(updateRevocationSQL, tbl)

	b := &pgx.Batch{}
	for _, r := range rs {
		if r.ID == "" || r.RevokedAt == nil {
			return fmt.Errorf("%w: update needs a revoked record", ErrInvalidRecord)
		}
		b.Queue(q, revocationArgs(r)...)
	}

	br := s.db.SendBatch(ctx, b)
	var failedID string
	for _, r := range rs {
		ct, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		if ct.RowsAffected() == 0 && failedID == "" {
			failedID = r.ID
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	if failedID != "" {
		return s.missingOrRevoked(ctx, failedID)
	}
	return nil
}

func (s *PostgresStore) missingOrRevoked(ctx context.Context, id string) error {
	tbl := pgdb.Ident(s.schema, "refresh_tokens")

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+tbl+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyRevoked
}
