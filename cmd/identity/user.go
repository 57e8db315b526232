package identity

import (
	"context"
	"strings"
	"time"
)

// Conflict fields reported by ConflictError.
const (
	FieldEmail    = "email"
	FieldUserName = "user_name"
)

// User is a chat account.
type User struct {
	ID                 string
	UserName           string
	NormalizedUserName string
	Email              string
	NormalizedEmail    string
	PasswordHash       string
	DisplayName        *string
	CreatedAt          time.Time
	UpdatedAt          *time.Time
	IsDeleted          bool
}

// NewUser builds an unsaved User with a fresh ULID and normalized lookup keys.
func NewUser(userName, email, passwordHash string, now time.Time) (User, error) {
	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:                 id,
		UserName:           strings.TrimSpace(userName),
		NormalizedUserName: NormalizeUserName(userName),
		Email:              strings.TrimSpace(email),
		NormalizedEmail:    NormalizeEmail(email),
		PasswordHash:       passwordHash,
		CreatedAt:          now,
	}, nil
}

// Store is the persistence boundary for user accounts.
//
// Lookups take normalized keys and return (nil, nil) when nothing matches.
// Soft-deleted users are still returned; callers decide how to treat them.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, normalizedEmail string) (*User, error)
	GetByUserName(ctx context.Context, normalizedUserName string) (*User, error)

	IsEmailTaken(ctx context.Context, normalizedEmail string) (bool, error)
	IsUserNameTaken(ctx context.Context, normalizedUserName string) (bool, error)

	// Add inserts u. Uniqueness violations surface as ConflictError.
	Add(ctx context.Context, u User) error

	// Update persists the mutable fields (password hash, display name, updated_at, is_deleted).
	// A missing row is a NotFoundError.
	Update(ctx context.Context, u User) error
}
