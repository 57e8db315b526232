package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/storage"
)

// LoginRequest exchanges credentials for tokens.
type LoginRequest struct {
	Email    string
	Password string
	ClientIP string
}

// LoginResponse carries the new token pair and the user it belongs to.
type LoginResponse struct {
	UserID string
	TokenPair
}

// Login verifies the password and starts a new session.
//
// An unknown email and a wrong password fail identically with Unauthorized;
// a dummy hash verification runs for unknown accounts to keep timings close.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	const op = "core.Login"
	start := time.Now()
	defer func() { s.metrics.Observe("login", time.Since(start)) }()

	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		s.metrics.Login("invalid")
		return LoginResponse{}, validation(op, "email and password are required")
	}

	now := s.clock.Now()
	ip := strings.TrimSpace(req.ClientIP)

	var (
		resp   LoginResponse
		userID string
		rec    string
	)
	err := s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		u, err := repos.Users().GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil || u.IsDeleted {
			s.hasher.VerifyDummy(req.Password)
			return newError(op, ErrUnauthorized, ErrInvalidCredentials)
		}
		userID = u.ID
		if !s.hasher.Verify(req.Password, u.PasswordHash) {
			return newError(op, ErrUnauthorized, ErrInvalidCredentials)
		}

		pair, r, err := s.issuePair(ctx, repos.Sessions(), u, now, ip)
		if err != nil {
			return err
		}
		resp = LoginResponse{UserID: u.ID, TokenPair: pair}
		rec = r.ID
		return nil
	})
	if err != nil {
		if Category(err) == ErrUnauthorized {
			s.metrics.Login("unauthorized")
			s.log.Info("auth.login.fail", "ip", ip)
			s.record(ctx, audit.Event{
				Action: audit.ActionLoginFailed,
				UserID: userID,
				IP:     ip,
				Meta:   map[string]any{"reason": "invalid_credentials"},
			})
			return LoginResponse{}, err
		}
		s.metrics.Login("error")
		s.log.Error("auth.login.issue_session.fail", "err", err)
		return LoginResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Login("ok")
	s.log.Info("auth.login.ok", "user_id", resp.UserID, "token_id", rec)
	s.record(ctx, audit.Event{Action: audit.ActionLoginSuccess, UserID: resp.UserID, TokenID: rec, IP: ip})

	return resp, nil
}
