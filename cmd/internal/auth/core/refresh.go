package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatty/cmd/internal/auth/audit"
	"chatty/cmd/internal/auth/session"
	"chatty/cmd/internal/storage"
)

// maxRefreshTokenLen rejects pathological inputs before hashing.
const maxRefreshTokenLen = 4096

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string
	ClientIP     string
}

// refreshOutcome is the decision taken inside the refresh transaction.
// Only outcomeRotated returns tokens; the other outcomes still commit their writes.
type refreshOutcome int

const (
	outcomeRotated refreshOutcome = iota
	outcomeNotRecognized
	outcomeExpired
	outcomeReuseDetected
	outcomeUserMissing
)

func (o refreshOutcome) String() string {
	switch o {
	case outcomeRotated:
		return "rotated"
	case outcomeNotRecognized:
		return "not_recognized"
	case outcomeExpired:
		return "expired"
	case outcomeReuseDetected:
		return "reuse_detected"
	case outcomeUserMissing:
		return "user_missing"
	default:
		return "unknown"
	}
}

type refreshResult struct {
	outcome refreshOutcome
	pair    TokenPair
	userID  string
	oldID   string
	newID   string
	revoked int
}

// Refresh rotates a refresh token.
//
//   - unknown token: BadRequest, nothing written.
//   - revoked token: reuse. Every active token of the owner is revoked and
//     flagged, the writes commit, then BadRequest.
//   - expired token: it is revoked, the write commits, then BadRequest.
//   - owner gone: NotFound.
//   - otherwise a new record is created and the presented one is revoked as
//     replaced, in the same transaction.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (TokenPair, error) {
	const op = "core.Refresh"
	start := time.Now()
	defer func() { s.metrics.Observe("refresh", time.Since(start)) }()

	secret := strings.TrimSpace(req.RefreshToken)
	if secret == "" || len(secret) > maxRefreshTokenLen {
		s.metrics.Refresh(outcomeNotRecognized.String())
		return TokenPair{}, newError(op, ErrBadRequest, ErrRefreshNotRecognized)
	}

	hash := s.signer.HashRefreshSecret(secret)
	ip := strings.TrimSpace(req.ClientIP)

	var res refreshResult
	err := s.do(ctx, func(ctx context.Context, repos storage.Repositories) error {
		// Reset per attempt; a retried transaction starts from scratch.
		res = refreshResult{}
		now := s.clock.Now()
		return s.refreshTx(ctx, repos, hash, ip, now, &res)
	})
	if err != nil {
		if isWriteRace(err) {
			s.metrics.Refresh(outcomeNotRecognized.String())
			s.log.Warn("auth.refresh.race_lost", "err", err)
			return TokenPair{}, newError(op, ErrBadRequest, ErrRefreshNotRecognized)
		}
		s.metrics.Refresh("error")
		s.log.Error("auth.refresh.fail", "err", err)
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Refresh(res.outcome.String())

	switch res.outcome {
	case outcomeRotated:
		s.metrics.Revoked(session.ReasonReplaced, 1)
		s.log.Info("auth.refresh.ok", "user_id", res.userID, "token_id", res.newID, "replaced", res.oldID)
		s.record(ctx, audit.Event{Action: audit.ActionRefreshSuccess, UserID: res.userID, TokenID: res.newID, IP: ip})
		return res.pair, nil

	case outcomeReuseDetected:
		s.metrics.Revoked(session.ReasonReuseDetected, res.revoked)
		s.log.Warn("auth.refresh.reuse_detected", "user_id", res.userID, "token_id", res.oldID, "revoked", res.revoked, "ip", ip)
		s.record(ctx, audit.Event{
			Action:  audit.ActionRefreshReuse,
			UserID:  res.userID,
			TokenID: res.oldID,
			IP:      ip,
			Meta:    map[string]any{"revoked": res.revoked},
		})
		return TokenPair{}, newError(op, ErrBadRequest, ErrRefreshReuseDetected)

	case outcomeExpired:
		s.metrics.Revoked(session.ReasonExpired, 1)
		s.log.Info("auth.refresh.expired", "user_id", res.userID, "token_id", res.oldID)
		s.record(ctx, audit.Event{Action: audit.ActionRefreshExpired, UserID: res.userID, TokenID: res.oldID, IP: ip})
		return TokenPair{}, newError(op, ErrBadRequest, ErrRefreshExpired)

	case outcomeUserMissing:
		s.log.Warn("auth.refresh.user_missing", "user_id", res.userID, "token_id", res.oldID)
		return TokenPair{}, newError(op, ErrNotFound, ErrUserNotFound)

	default:
		s.log.Info("auth.refresh.not_recognized", "ip", ip)
		return TokenPair{}, newError(op, ErrBadRequest, ErrRefreshNotRecognized)
	}
}

func (s *Service) refreshTx(ctx context.Context, repos storage.Repositories, hash, ip string, now time.Time, res *refreshResult) error {
	sessions := repos.Sessions()

	rec, err := sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		return err
	}
	if rec == nil {
		res.outcome = outcomeNotRecognized
		return nil
	}
	res.userID = rec.UserID
	res.oldID = rec.ID

	if rec.IsRevoked() {
		n, err := revokeAll(ctx, sessions, rec.UserID, now, session.ReasonReuseDetected, ip)
		if err != nil {
			return err
		}
		res.outcome = outcomeReuseDetected
		res.revoked = n
		return nil
	}

	if rec.IsExpired(now) {
		if err := rec.Revoke(now, session.ReasonExpired, ip, ""); err != nil {
			return err
		}
		if err := sessions.Update(ctx, *rec); err != nil {
			return err
		}
		res.outcome = outcomeExpired
		return nil
	}

	u, err := repos.Users().GetByID(ctx, rec.UserID)
	if err != nil {
		return err
	}
	if u == nil || u.IsDeleted {
		res.outcome = outcomeUserMissing
		return nil
	}

	pair, next, err := s.issuePair(ctx, sessions, u, now, ip)
	if err != nil {
		return err
	}
	if err := rec.Revoke(now, session.ReasonReplaced, ip, next.ID); err != nil {
		return err
	}
	if err := sessions.Update(ctx, *rec); err != nil {
		return err
	}

	res.outcome = outcomeRotated
	res.pair = pair
	res.newID = next.ID
	return nil
}
