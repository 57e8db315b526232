// Package memory provides an in-process UnitOfWork for tests and single-node development.
//
// Transactions are serialized by one writer lock and work on a copy of the
// state; the copy replaces the shared state only when fn succeeds.
package memory

import (
	"context"
	"sync"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
)

type state struct {
	users    map[string]identity.User
	sessions map[string]session.RefreshTokenRecord
}

func newState() *state {
	return &state{
		users:    make(map[string]identity.User),
		sessions: make(map[string]session.RefreshTokenRecord),
	}
}

func (s *state) clone() *state {
	out := &state{
		users:    make(map[string]identity.User, len(s.users)),
		sessions: make(map[string]session.RefreshTokenRecord, len(s.sessions)),
	}
	for k, u := range s.users {
		out.users[k] = cloneUser(u)
	}
	for k, r := range s.sessions {
		out.sessions[k] = r.Clone()
	}
	return out
}

// UnitOfWork is an in-memory storage.UnitOfWork.
type UnitOfWork struct {
	mu    sync.Mutex
	state *state
}

var _ storage.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork returns an empty store.
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{state: newState()}
}

type repos struct {
	users    *userStore
	sessions *sessionStore
}

func (r repos) Users() identity.Store   { return r.users }
func (r repos) Sessions() session.Store { return r.sessions }

// Do runs fn against a private copy and publishes it on success.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos storage.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	work := u.state.clone()
	if err := fn(ctx, repos{
		users:    &userStore{st: work},
		sessions: &sessionStore{st: work},
	}); err != nil {
		return err
	}

	// Cancellation before commit discards the work.
	if err := ctx.Err(); err != nil {
		return err
	}

	u.state = work
	return nil
}

func cloneUser(u identity.User) identity.User {
	out := u
	if u.DisplayName != nil {
		v := *u.DisplayName
		out.DisplayName = &v
	}
	if u.UpdatedAt != nil {
		v := *u.UpdatedAt
		out.UpdatedAt = &v
	}
	return out
}
