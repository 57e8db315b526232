package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/storage"
	"chatty/cmd/security/password"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	UserName    string
	Email       string
	Password    string
	DisplayName *string
}

// Account is a user without credential material.
type Account struct {
	ID          string
	UserName    string
	Email       string
	DisplayName *string
	CreatedAt   time.Time
}

func accountOf(u identity.User) Account {
	return Account{
		ID:          u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// Register creates a user. Duplicate email or username is a Conflict; the
// storage unique constraint is the final guard against a racing insert.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	const op = "core.Register"
	start := time.Now()
	defer func() { s.metrics.Observe("register", time.Since(start)) }()

	userName := strings.TrimSpace(req.UserName)
	email := strings.TrimSpace(req.Email)
	switch {
	case userName == "":
		s.metrics.Registration("invalid")
		return Account{}, validation(op, "username is required")
	case email == "":
		s.metrics.Registration("invalid")
		return Account{}, validation(op, "email is required")
	case req.Password == "":
		s.metrics.Registration("invalid")
		return Account{}, validation(op, "password is required")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if password.IsPolicyViolation(err) {
			s.metrics.Registration("invalid")
			return Account{}, newError(op, ErrBadRequest, fmt.Errorf("%w: %w", ErrValidation, err))
		}
		s.metrics.Registration("error")
		return Account{}, fmt.Errorf("%s: hash password: %w", op, err)
	}

	now := s.clock.Now()
	u, err := identity.NewUser(userName, email, hash, now)
	if err != nil {
		s.metrics.Registration("error")
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	if req.DisplayName != nil {
		if dn := strings.TrimSpace(*req.DisplayName); dn != "" {
			u.DisplayName = &dn
		}
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		users := repos.Users()

		taken, err := users.IsEmailTaken(ctx, u.NormalizedEmail)
		if err != nil {
			return err
		}
		if taken {
			return newError(op, ErrConflict, ErrEmailTaken)
		}

		taken, err = users.IsUserNameTaken(ctx, u.NormalizedUserName)
		if err != nil {
			return err
		}
		if taken {
			return newError(op, ErrConflict, ErrUserNameTaken)
		}

		return users.Add(ctx, u)
	})
	if err != nil {
		switch {
		case Category(err) != nil:
		case identity.IsConflict(err):
			err = newError(op, ErrConflict, conflictCause(err))
		default:
			s.metrics.Registration("error")
			s.log.Error("auth.register.fail", "err", err)
			return Account{}, fmt.Errorf("%s: %w", op, err)
		}
		s.metrics.Registration("conflict")
		s.log.Info("auth.register.conflict", "field", ConflictField(err))
		return Account{}, err
	}

	s.metrics.Registration("ok")
	s.log.Info("auth.register.ok", "user_id", u.ID)
	s.record(ctx, audit.Event{Action: audit.ActionRegister, UserID: u.ID})

	return accountOf(u), nil
}

func conflictCause(err error) error {
	switch identity.ConflictField(err) {
	case identity.FieldEmail:
		return fmt.Errorf("%w: %w", ErrEmailTaken, err)
	case identity.FieldUserName:
		return fmt.Errorf("%w: %w", ErrUserNameTaken, err)
	default:
		return err
	}
}
