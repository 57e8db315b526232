package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
	"chatty/cmd/internal/storage/pgtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests are opt-in and require CHATTY_DATABASE_URL.

func TestUnitOfWork_CommitsAndRollsBack(t *testing.T) {
	t.Parallel()

	pool := pgtest.OpenPool(t)
	schema := pgtest.NewSchema(t, pool)

	uow, err := NewUnitOfWork(pool, schema)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u, err := identity.NewUser("uow", "uow@example.com", "$argon2id$stub", now)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = uow.Do(ctx, func(ctx context.Context, r storage.Repositories) error {
		require.NoError(t, r.Users().Add(ctx, u))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, uow.Do(ctx, func(ctx context.Context, r storage.Repositories) error {
		got, err := r.Users().GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got, "rolled back insert must not persist")
		return r.Users().Add(ctx, u)
	}))

	require.NoError(t, uow.Do(ctx, func(ctx context.Context, r storage.Repositories) error {
		rec, err := session.NewRecord(u.ID, "uow-hash", now, now.Add(time.Hour), "")
		require.NoError(t, err)
		return r.Sessions().Create(ctx, rec)
	}))

	require.NoError(t, uow.Do(ctx, func(ctx context.Context, r storage.Repositories) error {
		list, err := r.Sessions().ListByUser(ctx, u.ID, true)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		return nil
	}))
}

func TestNewUnitOfWork_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewUnitOfWork(nil, "")
	assert.Error(t, err)
}
