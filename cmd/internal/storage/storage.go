// Package storage defines the transactional boundary the auth core runs in.
package storage

import (
	"context"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/session"
)

// Repositories exposes the stores bound to one transaction.
type Repositories interface {
	Users() identity.Store
	Sessions() session.Store
}

// UnitOfWork runs fn inside a single transaction.
//
// A nil return from fn commits every write made through repos; an error, a
// panic or a cancelled ctx discards all of them.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
