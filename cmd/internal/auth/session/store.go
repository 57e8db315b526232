package session

import "context"

// Store persists refresh-token records.
//
// Implementations are bound to one unit of work: every call made through a
// Store obtained inside a transaction is part of that transaction.
type Store interface {
	// Create inserts r. A stored hash collision is ErrDuplicateTokenHash.
	Create(ctx context.Context, r RefreshTokenRecord) error

	// FindByTokenHash returns the record for hash, or (nil, nil) when none exists.
	// Inside a transaction the row stays locked until commit.
	FindByTokenHash(ctx context.Context, hash string) (*RefreshTokenRecord, error)

	// ListByUser returns the user's records newest first.
	// Revoked records are included only when includeRevoked is true.
	ListByUser(ctx context.Context, userID string, includeRevoked bool) ([]RefreshTokenRecord, error)

	// Update persists the revocation fields of a revoked record.
	// It fails with ErrAlreadyRevoked when the stored row was revoked meanwhile.
	Update(ctx context.Context, r RefreshTokenRecord) error

	// UpdateMany applies Update to every record; any failure fails the batch.
	UpdateMany(ctx context.Context, rs []RefreshTokenRecord) error
}
