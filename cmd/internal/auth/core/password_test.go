package core

import (
	"context"
	"testing"

	"chatty/cmd/internal/auth/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassword_WrongCurrentLeavesHash(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	acc := e.register(t, "alice", "alice@example.com", alicePassword)
	before := e.user(t, acc.ID).PasswordHash

	err := e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID:          acc.ID,
		CurrentPassword: "not my password",
		NewPassword:     bobPassword,
	})
	require.ErrorIs(t, err, ErrBadRequest)
	assert.ErrorIs(t, err, ErrWrongPassword)

	after := e.user(t, acc.ID)
	assert.Equal(t, before, after.PasswordHash)
	assert.Nil(t, after.UpdatedAt)
}

func TestChangePassword_ChecksCurrentBeforeNewPolicy(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	acc := e.register(t, "alice", "alice@example.com", alicePassword)
	before := e.user(t, acc.ID).PasswordHash

	err := e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID:          acc.ID,
		CurrentPassword: "not my password",
		NewPassword:     "short",
	})
	require.ErrorIs(t, err, ErrBadRequest)
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, before, e.user(t, acc.ID).PasswordHash)
}

func TestChangePassword_SwapsCredentialsKeepsSessions(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	acc := e.register(t, "alice", "alice@example.com", alicePassword)
	resp := e.login(t, "alice@example.com", alicePassword, "")

	require.NoError(t, e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID:          acc.ID,
		CurrentPassword: alicePassword,
		NewPassword:     bobPassword,
	}))

	u := e.user(t, acc.ID)
	assert.True(t, e.hasher.Verify(bobPassword, u.PasswordHash))
	assert.False(t, e.hasher.Verify(alicePassword, u.PasswordHash))
	require.NotNil(t, u.UpdatedAt)
	assert.True(t, u.UpdatedAt.Equal(e.clk.Now()))

	_, err := e.svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: alicePassword})
	assert.ErrorIs(t, err, ErrUnauthorized)
	e.login(t, "alice@example.com", bobPassword, "")

	_, err = e.refresh(resp.RefreshToken)
	assert.NoError(t, err, "sessions survive a password change by default")
}

func TestChangePassword_CanRevokeSessions(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{RevokeSessionsOnPasswordChange: true})
	acc := e.register(t, "alice", "alice@example.com", alicePassword)
	resp := e.login(t, "alice@example.com", alicePassword, "")
	e.login(t, "alice@example.com", alicePassword, "")

	require.NoError(t, e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID:          acc.ID,
		CurrentPassword: alicePassword,
		NewPassword:     bobPassword,
	}))

	assert.Equal(t, 0, e.activeCount(t, acc.ID))
	for _, r := range e.records(t, acc.ID) {
		assert.Equal(t, session.ReasonPasswordChange, *r.RevokedReason)
	}
	_, err := e.refresh(resp.RefreshToken)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestChangePassword_Rejections(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	acc := e.register(t, "alice", "alice@example.com", alicePassword)

	err := e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID: "01J00000000000000000000000", CurrentPassword: alicePassword, NewPassword: bobPassword,
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID: acc.ID, CurrentPassword: alicePassword, NewPassword: "short",
	})
	require.ErrorIs(t, err, ErrBadRequest)
	assert.ErrorIs(t, err, ErrValidation)

	err = e.svc.ChangePassword(context.Background(), ChangePasswordRequest{UserID: acc.ID, NewPassword: bobPassword})
	assert.ErrorIs(t, err, ErrValidation)

	softDelete(t, e, acc.ID)
	err = e.svc.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID: acc.ID, CurrentPassword: alicePassword, NewPassword: bobPassword,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
