package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatty/cmd/identity"
	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/auth/tokens"
	"chatty/cmd/internal/clock"
	"chatty/cmd/internal/metrics"
	"chatty/cmd/internal/storage"
)

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	VerifyDummy(password string)
}

// TokenSigner mints access tokens and refresh secrets.
type TokenSigner interface {
	IssueAccessToken(sub tokens.Subject, now time.Time) (tokens.AccessToken, error)
	IssueRefreshSecret(now time.Time) (tokens.RefreshSecret, error)
	HashRefreshSecret(secret string) string
}

// Config holds policy switches.
type Config struct {
	// RevokeSessionsOnPasswordChange revokes every active refresh token of a
	// user after a successful password change. Off by default.
	RevokeSessionsOnPasswordChange bool
}

// Options carries optional collaborators. Zero values are valid.
type Options struct {
	Config  Config
	Logger  *slog.Logger
	Metrics *metrics.Auth
	Audit   audit.Recorder
}

// Service implements the auth operations.
type Service struct {
	uow     storage.UnitOfWork
	hasher  PasswordHasher
	signer  TokenSigner
	clock   clock.Clock
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Auth
	audit   audit.Recorder
}

// New wires a Service. The signer is built once at startup and shared.
func New(uow storage.UnitOfWork, hasher PasswordHasher, signer TokenSigner, clk clock.Clock, opts Options) (*Service, error) {
	if uow == nil || hasher == nil || signer == nil {
		return nil, errors.New("core: nil dependency")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	return &Service{
		uow:     uow,
		hasher:  hasher,
		signer:  signer,
		clock:   clk,
		cfg:     opts.Config,
		log:     opts.Logger,
		metrics: opts.Metrics,
		audit:   opts.Audit,
	}, nil
}

// TokenPair is a freshly issued access token and refresh token.
// Lifetimes are whole seconds, never negative.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresIn  int64
	RefreshToken          string
	RefreshTokenExpiresIn int64
}

// maxTxAttempts bounds retries after losing a write race on a refresh-token row.
const maxTxAttempts = 3

// isWriteRace reports errors caused by a concurrent writer on the same rows.
func isWriteRace(err error) bool {
	return errors.Is(err, session.ErrAlreadyRevoked) || errors.Is(err, session.ErrDuplicateTokenHash)
}

// do runs fn in a transaction, retrying lost write races.
func (s *Service) do(ctx context.Context, fn func(ctx context.Context, repos storage.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.uow.Do(ctx, fn)
		if err == nil || !isWriteRace(err) {
			return err
		}
		s.log.Debug("auth.tx.retry", "attempt", attempt, "err", err)
	}
	return err
}

// record stamps e with the service clock and hands it to the audit recorder.
func (s *Service) record(ctx context.Context, e audit.Event) {
	if e.At.IsZero() {
		e.At = s.clock.Now()
	}
	s.audit.Record(ctx, e)
}

// secondsUntil returns max(0, floor(exp - now)) in seconds.
func secondsUntil(exp, now time.Time) int64 {
	d := exp.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

func subjectOf(u *identity.User) tokens.Subject {
	return tokens.Subject{
		UserID:      u.ID,
		Email:       u.Email,
		UserName:    u.UserName,
		DisplayName: u.DisplayName,
	}
}

// issuePair mints an access token and a refresh record for u and stores the record.
func (s *Service) issuePair(ctx context.Context, sessions session.Store, u *identity.User, now time.Time, ip string) (TokenPair, session.RefreshTokenRecord, error) {
	access, err := s.signer.IssueAccessToken(subjectOf(u), now)
	if err != nil {
		return TokenPair{}, session.RefreshTokenRecord{}, fmt.Errorf("issue access token: %w", err)
	}
	secret, err := s.signer.IssueRefreshSecret(now)
	if err != nil {
		return TokenPair{}, session.RefreshTokenRecord{}, fmt.Errorf("issue refresh secret: %w", err)
	}

	rec, err := session.NewRecord(u.ID, secret.Hash, now, secret.ExpiresAt, ip)
	if err != nil {
		return TokenPair{}, session.RefreshTokenRecord{}, err
	}
	if err := sessions.Create(ctx, rec); err != nil {
		return TokenPair{}, session.RefreshTokenRecord{}, err
	}

	return TokenPair{
		AccessToken:           access.Token,
		AccessTokenExpiresIn:  secondsUntil(access.ExpiresAt, now),
		RefreshToken:          secret.Secret,
		RefreshTokenExpiresIn: secondsUntil(rec.ExpiresAt, now),
	}, rec, nil
}

// revokeAll revokes every unrevoked record of userID and returns how many changed.
func revokeAll(ctx context.Context, sessions session.Store, userID string, now time.Time, reason, ip string) (int, error) {
	active, err := sessions.ListByUser(ctx, userID, false)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}

	for i := range active {
		var rerr error
		if reason == session.ReasonReuseDetected {
			rerr = active[i].RevokeForReuse(now, ip)
		} else {
			rerr = active[i].Revoke(now, reason, ip, "")
		}
		if rerr != nil {
			return 0, rerr
		}
	}
	if err := sessions.UpdateMany(ctx, active); err != nil {
		return 0, err
	}
	return len(active), nil
}
