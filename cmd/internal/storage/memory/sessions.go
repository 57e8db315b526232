package memory

import (
	"context"
	"fmt"
	"sort"

	"chatty/cmd/internal/auth/session"
)

type sessionStore struct {
	st *state
}

func (s *sessionStore) Create(ctx context.Context, r session.RefreshTokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" || r.UserID == "" || r.TokenHash == "" {
		return fmt.Errorf("%w: missing id, user or hash", session.ErrInvalidRecord)
	}
	if _, ok := s.st.users[r.UserID]; !ok {
		return session.ErrUnknownUser
	}
	if _, ok := s.st.sessions[r.ID]; ok {
		return fmt.Errorf("%w: duplicate id", session.ErrInvalidRecord)
	}
	for _, existing := range s.st.sessions {
		if existing.TokenHash == r.TokenHash {
			return session.ErrDuplicateTokenHash
		}
	}

	s.st.sessions[r.ID] = r.Clone()
	return nil
}

func (s *sessionStore) FindByTokenHash(ctx context.Context, hash string) (*session.RefreshTokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, nil
	}
	for _, r := range s.st.sessions {
		if r.TokenHash == hash {
			c := r.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (s *sessionStore) ListByUser(ctx context.Context, userID string, includeRevoked bool) ([]session.RefreshTokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]session.RefreshTokenRecord, 0, 4)
	for _, r := range s.st.sessions {
		if r.UserID != userID {
			continue
		}
		if r.IsRevoked() && !includeRevoked {
			continue
		}
		out = append(out, r.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *sessionStore) Update(ctx context.Context, r session.RefreshTokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" || r.RevokedAt == nil {
		return fmt.Errorf("%w: update needs a revoked record", session.ErrInvalidRecord)
	}

	cur, ok := s.st.sessions[r.ID]
	if !ok {
		return session.ErrNotFound
	}
	if cur.IsRevoked() {
		return session.ErrAlreadyRevoked
	}

	next := r.Clone()
	cur.RevokedAt = next.RevokedAt
	cur.RevokedReason = next.RevokedReason
	cur.RevokedByIP = next.RevokedByIP
	cur.ReplacedByTokenID = next.ReplacedByTokenID
	cur.Reused = next.Reused
	s.st.sessions[r.ID] = cur
	return nil
}

func (s *sessionStore) UpdateMany(ctx context.Context, rs []session.RefreshTokenRecord) error {
	for _, r := range rs {
		if err := s.Update(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
