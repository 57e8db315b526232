package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
	"chatty/cmd/security/password"
)

// ChangePasswordRequest replaces a user's password.
type ChangePasswordRequest struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	ClientIP        string
}

// ChangePassword verifies the current password and stores a hash of the new one.
// A wrong current password is BadRequest and leaves the stored hash unchanged.
// Sessions stay active unless Config.RevokeSessionsOnPasswordChange is set.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	const op = "core.ChangePassword"
	start := time.Now()
	defer func() { s.metrics.Observe("change_password", time.Since(start)) }()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" || req.CurrentPassword == "" || req.NewPassword == "" {
		s.metrics.PasswordChange("invalid")
		return validation(op, "user id, current and new password are required")
	}

	ip := strings.TrimSpace(req.ClientIP)

	// The current password is checked before the new one is hashed.
	var verified string
	err := s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		u, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil || u.IsDeleted {
			return newError(op, ErrNotFound, ErrUserNotFound)
		}
		verified = u.PasswordHash
		return nil
	})
	if err == nil && !s.hasher.Verify(req.CurrentPassword, verified) {
		err = newError(op, ErrBadRequest, ErrWrongPassword)
	}
	if err != nil {
		return s.passwordChangeFailed(ctx, op, userID, ip, err)
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if password.IsPolicyViolation(err) {
			s.metrics.PasswordChange("invalid")
			return newError(op, ErrBadRequest, fmt.Errorf("%w: %w", ErrValidation, err))
		}
		s.metrics.PasswordChange("error")
		return fmt.Errorf("%s: hash password: %w", op, err)
	}

	var revoked int
	err = s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		revoked = 0
		users := repos.Users()

		u, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil || u.IsDeleted {
			return newError(op, ErrNotFound, ErrUserNotFound)
		}
		// Another change may have committed since the check above.
		if u.PasswordHash != verified && !s.hasher.Verify(req.CurrentPassword, u.PasswordHash) {
			return newError(op, ErrBadRequest, ErrWrongPassword)
		}

		now := s.clock.Now()
		u.PasswordHash = newHash
		u.UpdatedAt = &now
		if err := users.Update(ctx, *u); err != nil {
			return err
		}

		if s.cfg.RevokeSessionsOnPasswordChange {
			revoked, err = revokeAll(ctx, repos.Sessions(), u.ID, now, session.ReasonPasswordChange, ip)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.passwordChangeFailed(ctx, op, userID, ip, err)
	}

	s.metrics.PasswordChange("ok")
	s.metrics.Revoked(session.ReasonPasswordChange, revoked)
	s.log.Info("auth.password.change.ok", "user_id", userID, "revoked", revoked)
	s.record(ctx, audit.Event{Action: audit.ActionPasswordChanged, UserID: userID, IP: ip})
	return nil
}

func (s *Service) passwordChangeFailed(ctx context.Context, op, userID, ip string, err error) error {
	if Category(err) != nil {
		s.metrics.PasswordChange("rejected")
		s.log.Info("auth.password.change.rejected", "user_id", userID, "err", err)
		s.record(ctx, audit.Event{Action: audit.ActionPasswordChangeFail, UserID: userID, IP: ip})
		return err
	}
	s.metrics.PasswordChange("error")
	s.log.Error("auth.password.change.fail", "err", err, "user_id", userID)
	return fmt.Errorf("%s: %w", op, err)
}
