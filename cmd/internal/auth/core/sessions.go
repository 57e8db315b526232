package core

import (
	"context"
	"fmt"
	"strings"

	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
)

// ListActiveSessions returns the user's unrevoked, unexpired sessions, newest first.
func (s *Service) ListActiveSessions(ctx context.Context, userID string) ([]session.View, error) {
	return s.listSessions(ctx, "core.ListActiveSessions", userID, false)
}

// ListSessions returns every session of the user, newest first, including
// revoked and expired ones. It backs the admin tooling.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]session.View, error) {
	return s.listSessions(ctx, "core.ListSessions", userID, true)
}

func (s *Service) listSessions(ctx context.Context, op, userID string, all bool) ([]session.View, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validation(op, "user id is required")
	}

	var out []session.View
	err := s.uow.Do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		recs, err := repos.Sessions().ListByUser(ctx, userID, all)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		out = make([]session.View, 0, len(recs))
		for _, r := range recs {
			if !all && !r.IsActive(now) {
				continue
			}
			out = append(out, r.View())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
