package core

import (
	"context"
	"fmt"
	"strings"

	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
)

// LogoutRequest ends one session.
type LogoutRequest struct {
	UserID       string
	RefreshToken string
	ClientIP     string
}

// Logout revokes the presented refresh token if it is an active token of the user.
// Unknown, foreign and already revoked tokens succeed silently.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) error {
	const op = "core.Logout"

	userID := strings.TrimSpace(req.UserID)
	secret := strings.TrimSpace(req.RefreshToken)
	if userID == "" || secret == "" || len(secret) > maxRefreshTokenLen {
		return nil
	}

	hash := s.signer.HashRefreshSecret(secret)
	ip := strings.TrimSpace(req.ClientIP)

	var revokedID string
	err := s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		revokedID = ""
		sessions := repos.Sessions()

		rec, err := sessions.FindByTokenHash(ctx, hash)
		if err != nil {
			return err
		}
		if rec == nil || rec.UserID != userID || rec.IsRevoked() {
			return nil
		}

		if err := rec.Revoke(s.clock.Now(), session.ReasonUserLogout, ip, ""); err != nil {
			return err
		}
		if err := sessions.Update(ctx, *rec); err != nil {
			return err
		}
		revokedID = rec.ID
		return nil
	})
	if err != nil {
		s.log.Error("auth.logout.fail", "err", err, "user_id", userID)
		return fmt.Errorf("%s: %w", op, err)
	}

	if revokedID != "" {
		s.metrics.Revoked(session.ReasonUserLogout, 1)
		s.log.Info("auth.logout.ok", "user_id", userID, "token_id", revokedID)
		s.record(ctx, audit.Event{Action: audit.ActionLogout, UserID: userID, TokenID: revokedID, IP: ip})
	}
	return nil
}

// LogoutAllSessions revokes every active refresh token of the user and returns how many were revoked.
// Access tokens already issued stay valid until they expire.
func (s *Service) LogoutAllSessions(ctx context.Context, userID, clientIP string) (int, error) {
	const op = "core.LogoutAllSessions"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, validation(op, "user id is required")
	}
	ip := strings.TrimSpace(clientIP)

	var n int
	err := s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		var err error
		n, err = revokeAll(ctx, repos.Sessions(), userID, s.clock.Now(), session.ReasonLogoutAll, ip)
		return err
	})
	if err != nil {
		s.log.Error("auth.logout_all.fail", "err", err, "user_id", userID)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Revoked(session.ReasonLogoutAll, n)
	s.log.Info("auth.logout_all.ok", "user_id", userID, "revoked", n)
	s.record(ctx, audit.Event{Action: audit.ActionLogoutAll, UserID: userID, IP: ip, Meta: map[string]any{"revoked": n}})
	return n, nil
}
